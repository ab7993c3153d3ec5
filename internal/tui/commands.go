package tui

import "strings"

type command struct {
	name string
	arg  string
}

// parseCommand splits a "/name arg..." line. Plain messages return ok=false.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

const helpText = `Commands:
  /chats            list chats
  /new <name>       create a chat and switch to it
  /chat <name>      switch to an existing chat
  /ingest <path>    load, embed and store a text file
  /search <query>   show the closest stored texts
  /resume           embed stored texts that have no embedding yet
  /verify           check index, bridge and store agree
  /stats            show store and index counts
  /help             show this help
  /exit             quit`
