package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"memchat/internal/chunker"
	"memchat/internal/config"
	"memchat/internal/domain"
	"memchat/internal/loader"
	"memchat/internal/logger"
	"memchat/internal/service"
	"memchat/internal/store"
	"memchat/internal/summarizer"
	"memchat/internal/tui"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	_ = godotenv.Load()

	var (
		cfgPath, newChat, chatName, system, model string
		aiMessage, humanTemplate                  string
		temperature                               float64
		list, verbose                             bool
		files                                     listFlag
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./memchat.yaml or ~/.config/memchat/config.yaml)")
	flag.BoolVar(&list, "l", false, "List the available chats and exit")
	flag.StringVar(&newChat, "n", "", "Create a new chat with this name and open it")
	flag.StringVar(&chatName, "c", "", "Open the chat with this name")
	flag.Var(&files, "f", "File (or glob) to load and embed before chatting; repeatable")
	flag.StringVar(&system, "s", "", "System prompt for the assistant")
	flag.StringVar(&aiMessage, "a", "", "AI message that opens the conversation")
	flag.StringVar(&humanTemplate, "human", "", "Template for human messages; {human_input} is replaced by your text")
	flag.StringVar(&model, "m", "", "Completion model to use")
	flag.Float64Var(&temperature, "t", -1, "Sampling temperature")
	flag.BoolVar(&verbose, "v", false, "Verbose (debug) logging")
	flag.Parse()
	files = append(files, flag.Args()...)

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if system != "" {
		cfg.Completer.SystemPrompt = system
	}
	if aiMessage != "" {
		cfg.Completer.AIMessage = aiMessage
	}
	if humanTemplate != "" {
		cfg.Completer.HumanTemplate = humanTemplate
	}
	if model != "" {
		cfg.Completer.Model = model
	}
	if temperature >= 0 {
		cfg.Completer.Temperature = temperature
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	lg, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg, options{list: list, newChat: newChat, chatName: chatName, files: files}); err != nil {
		lg.Error("memchat failed", "error", err)
		fmt.Fprintln(os.Stderr, "memchat:", err)
		lg.Sync()
		os.Exit(1)
	}
}

type options struct {
	list     bool
	newChat  string
	chatName string
	files    []string
}

func run(cfg *config.AppConfig, lg *logger.Logger, opts options) error {
	ctx := context.Background()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.list {
		chats, err := st.ListChats(ctx)
		if err != nil {
			return err
		}
		for _, c := range chats {
			fmt.Printf("%d: %s\n", c.ID, c.Name)
		}
		return nil
	}

	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}
	idx, err := buildIndex(cfg.VectorStore, emb.Dimension())
	if err != nil {
		return err
	}
	completer, err := buildCompleter(cfg.Completer)
	if err != nil {
		return err
	}

	mem, err := service.NewMemoryService(ctx, service.MemoryDeps{
		Store:      st,
		Index:      idx,
		Embedder:   emb,
		Chunker:    chunker.NewCharChunker(cfg.Chunker.MaxChars),
		Loader:     loader.NewTextLoader(),
		Summarizer: summarizer.NewFrequencySummarizer(),
		Logger:     lg.With("component", "memory"),
	}, service.MemoryOptions{
		EmbedTimeout:        seconds(cfg.Embedder.TimeoutSecs),
		TopK:                cfg.Retrieval.TopK,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
	})
	if err != nil {
		return err
	}
	chat := service.NewChatService(mem, completer, lg.With("component", "chat"), service.ChatOptions{
		SystemPrompt:    cfg.Completer.SystemPrompt,
		AIMessage:       cfg.Completer.AIMessage,
		HumanTemplate:   cfg.Completer.HumanTemplate,
		TopK:            cfg.Retrieval.TopK,
		HistoryTurns:    cfg.Retrieval.HistoryTurns,
		CompleteTimeout: seconds(cfg.Completer.TimeoutSecs),
	})

	if len(opts.files) > 0 {
		results, err := mem.IngestDocuments(ctx, opts.files)
		for _, r := range results {
			fmt.Printf("ingested %s: %d chunks, %d embedded\n", r.Path, r.Chunks, len(r.Succeeded))
			if r.Partial() {
				fmt.Printf("  chunks %v could not be embedded; /resume retries them\n", r.Failed)
			}
			if r.Summary != "" {
				fmt.Printf("  summary: %s\n", r.Summary)
			}
		}
		if err != nil {
			return err
		}
	}

	tuiOpts := tui.Options{
		Banner:    fmt.Sprintf("[%s · %s]", emb.Name(), completer.Name()),
		SearchK:   cfg.Retrieval.TopK,
		OpTimeout: seconds(cfg.Completer.TimeoutSecs + cfg.Embedder.TimeoutSecs*4),
	}
	switch {
	case opts.newChat != "":
		c, err := mem.CreateChat(ctx, opts.newChat)
		if err != nil {
			return err
		}
		tuiOpts.ChatID, tuiOpts.ChatName = c.ID, c.Name
	case opts.chatName != "":
		id, err := mem.SelectChat(ctx, opts.chatName)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("chat %q does not exist; create it with -n", opts.chatName)
		}
		if err != nil {
			return err
		}
		tuiOpts.ChatID, tuiOpts.ChatName = id, opts.chatName
	}

	lg.Info("session started", "store", cfg.Store.Path, "embedder", emb.Name(), "completer", completer.Name(), "chat", tuiOpts.ChatName)
	m := tui.New(service.NewSession(chat), tuiOpts)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
