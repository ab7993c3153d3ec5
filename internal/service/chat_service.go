package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memchat/internal/domain"
	"memchat/internal/logger"
)

const DefaultCompleteTimeout = 60 * time.Second

type ChatOptions struct {
	SystemPrompt    string
	AIMessage       string
	HumanTemplate   string
	TopK            int
	HistoryTurns    int
	CompleteTimeout time.Duration
}

// ChatService runs retrieval-augmented turns on top of a MemoryService.
type ChatService struct {
	memory    *MemoryService
	completer domain.Completer
	log       *logger.Logger
	opts      ChatOptions
}

func NewChatService(memory *MemoryService, completer domain.Completer, log *logger.Logger, opts ChatOptions) *ChatService {
	if log == nil {
		log = logger.Nop()
	}
	if opts.CompleteTimeout <= 0 {
		opts.CompleteTimeout = DefaultCompleteTimeout
	}
	return &ChatService{memory: memory, completer: completer, log: log, opts: opts}
}

// TurnResult is what one user message produced.
type TurnResult struct {
	Reply   string
	Context []domain.Retrieved
	Record  domain.TurnRecord
	// ContextErr is set when retrieval failed and the turn ran without
	// recalled memories.
	ContextErr error
}

// Turn answers userText in chatID. Context is retrieved before the new turn
// is recorded, so a message never recalls itself. A failed completion
// records nothing.
func (c *ChatService) Turn(ctx context.Context, chatID int64, userText string) (TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return TurnResult{}, errors.New("empty message")
	}
	log := c.log.With("chat_id", chatID)

	var res TurnResult
	recalled, err := c.memory.RetrieveContext(ctx, userText, c.opts.TopK)
	if err != nil {
		log.Warn("retrieval failed, continuing without context", "error", err)
		res.ContextErr = err
	}
	res.Context = recalled

	history, err := c.memory.History(ctx, chatID, c.opts.HistoryTurns)
	if err != nil {
		return res, fmt.Errorf("load history: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.opts.CompleteTimeout)
	defer cancel()
	start := time.Now()
	reply, err := c.completer.Complete(cctx, domain.Prompt{
		System:        c.opts.SystemPrompt,
		AIMessage:     c.opts.AIMessage,
		HumanTemplate: c.opts.HumanTemplate,
		History:       history,
		Context:       recalled,
		User:          userText,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		return res, fmt.Errorf("%s: %w", c.completer.Name(), err)
	}
	res.Reply = reply
	log.Debug("completion", "completer", c.completer.Name(), "recalled", len(recalled), "took", time.Since(start))

	res.Record, err = c.memory.RecordTurn(ctx, chatID, userText, reply)
	if err != nil {
		return res, fmt.Errorf("record turn: %w", err)
	}
	return res, nil
}

// Session bundles the chat and memory services for a front end.
type Session struct {
	*ChatService
	*MemoryService
}

func NewSession(chat *ChatService) Session {
	return Session{ChatService: chat, MemoryService: chat.memory}
}
