// Package anthropic generates agent turns with the Claude Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"memchat/internal/completion"
	"memchat/internal/domain"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultAPIKeyEnv = "ANTHROPIC_API_KEY"
	DefaultMaxTokens = 1024
)

type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	MaxTokens   int64
}

type Completer struct {
	client anthropic.Client
	cfg    Config
}

func New(cfg Config) (*Completer, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Completer{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

func (c *Completer) Name() string { return "anthropic:" + c.cfg.Model }

func (c *Completer) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		Messages:  Messages(p),
		System:    System(p),
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(c.cfg.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("claude API error: no text in response")
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}

// System returns the system blocks. The Messages API wants a user message
// first, so an opening AI message is carried here instead.
func System(p domain.Prompt) []anthropic.TextBlockParam {
	blocks := []anthropic.TextBlockParam{{Text: completion.SystemText(p)}}
	if ai := strings.TrimSpace(p.AIMessage); ai != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: "You opened this conversation with:\n" + ai})
	}
	return blocks
}

// Messages converts the history and the new user text into alternating
// user/assistant turns.
func Messages(p domain.Prompt) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, 1+2*len(p.History))
	for _, ex := range p.History {
		msgs = append(msgs,
			anthropic.NewUserMessage(anthropic.NewTextBlock(ex.User)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(ex.Agent)),
		)
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(completion.UserText(p))))
}
