// Package echo is an offline completer that repeats the user's message.
package echo

import (
	"context"
	"fmt"
	"strings"

	"memchat/internal/completion"
	"memchat/internal/domain"
)

type Completer struct{}

func New() *Completer { return &Completer{} }

func (c *Completer) Name() string { return "echo" }

func (c *Completer) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	reply := fmt.Sprintf("You said: %s", completion.UserText(p))
	if n := len(p.Context); n > 0 {
		reply += fmt.Sprintf(" (recalled %d memories, closest: %q)", n, strings.TrimSpace(p.Context[0].Text))
	}
	return reply, nil
}
