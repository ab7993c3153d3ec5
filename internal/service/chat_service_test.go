package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/completion/echo"
	"memchat/internal/domain"
)

// recordingCompleter remembers the last prompt and replies with a fixed text.
type recordingCompleter struct {
	reply string
	err   error
	delay time.Duration
	last  domain.Prompt
}

func (c *recordingCompleter) Name() string { return "recording" }

func (c *recordingCompleter) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	c.last = p
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.reply, c.err
}

func TestChat_TurnRecordsAndRecalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ":memory:", MemoryOptions{})
	chat, err := f.svc.CreateChat(ctx, "demo")
	require.NoError(t, err)

	cs := NewChatService(f.svc, echo.New(), nil, ChatOptions{TopK: 2, HistoryTurns: 5})

	first, err := cs.Turn(ctx, chat.ID, "  my cat is called Tom  ")
	require.NoError(t, err)
	assert.Empty(t, first.Context)
	assert.Equal(t, "You said: my cat is called Tom", first.Reply)
	assert.NotZero(t, first.Record.MessageID)

	second, err := cs.Turn(ctx, chat.ID, "my cat is called Tom")
	require.NoError(t, err)
	require.NotEmpty(t, second.Context)
	assert.Equal(t, "my cat is called Tom", second.Context[0].Text)
	assert.Zero(t, second.Context[0].Distance)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Messages)
	assert.Equal(t, 4, st.Embeddings)
}

func TestChat_PromptCarriesHistoryAndContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ":memory:", MemoryOptions{})
	chat, err := f.svc.CreateChat(ctx, "c")
	require.NoError(t, err)
	_, err = f.svc.RecordTurn(ctx, chat.ID, "earlier question", "earlier answer")
	require.NoError(t, err)

	rc := &recordingCompleter{reply: "ok"}
	cs := NewChatService(f.svc, rc, nil, ChatOptions{SystemPrompt: "be nice", TopK: 1, HistoryTurns: 3})
	_, err = cs.Turn(ctx, chat.ID, "earlier question")
	require.NoError(t, err)

	assert.Equal(t, "be nice", rc.last.System)
	assert.Equal(t, "earlier question", rc.last.User)
	assert.Equal(t, []domain.Exchange{{User: "earlier question", Agent: "earlier answer"}}, rc.last.History)
	require.Len(t, rc.last.Context, 1)
	assert.Equal(t, "earlier question", rc.last.Context[0].Text)
}

func TestChat_PromptCarriesOpeningAndTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ":memory:", MemoryOptions{})
	chat, err := f.svc.CreateChat(ctx, "c")
	require.NoError(t, err)

	rc := &recordingCompleter{reply: "ok"}
	cs := NewChatService(f.svc, rc, nil, ChatOptions{AIMessage: "Hi there.", HumanTemplate: "Q: {human_input}"})
	_, err = cs.Turn(ctx, chat.ID, "what is stored?")
	require.NoError(t, err)
	assert.Equal(t, "Hi there.", rc.last.AIMessage)
	assert.Equal(t, "Q: {human_input}", rc.last.HumanTemplate)

	history, err := f.svc.History(ctx, chat.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "what is stored?", history[0].User)
}

func TestChat_FailedCompletionRecordsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ":memory:", MemoryOptions{})
	chat, err := f.svc.CreateChat(ctx, "c")
	require.NoError(t, err)

	boom := errors.New("provider down")
	cs := NewChatService(f.svc, &recordingCompleter{err: boom}, nil, ChatOptions{})
	_, err = cs.Turn(ctx, chat.ID, "hello")
	assert.ErrorIs(t, err, boom)

	slow := NewChatService(f.svc, &recordingCompleter{reply: "late", delay: time.Second}, nil, ChatOptions{CompleteTimeout: 10 * time.Millisecond})
	_, err = slow.Turn(ctx, chat.ID, "hello")
	assert.ErrorIs(t, err, domain.ErrTimeout)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Messages)
	assert.Zero(t, st.Documents)
}

func TestChat_RetrievalFailureDoesNotBlockTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ":memory:", MemoryOptions{})
	chat, err := f.svc.CreateChat(ctx, "c")
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, "seed.txt", "seed")
	require.NoError(t, err)

	f.embedder.FailOn(func(string) bool { return true })
	cs := NewChatService(f.svc, echo.New(), nil, ChatOptions{})
	res, err := cs.Turn(ctx, chat.ID, "hello")
	require.NoError(t, err)
	assert.True(t, errors.Is(res.ContextErr, domain.ErrEmbeddingUnavailable))
	assert.Equal(t, []int{1}, res.Record.User.Failed)
	assert.Equal(t, []int{1}, res.Record.Agent.Failed)

	_, err = cs.Turn(ctx, chat.ID, "   ")
	assert.Error(t, err)
}
