package echo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/domain"
)

func TestCompleter(t *testing.T) {
	c := New()
	out, err := c.Complete(context.Background(), domain.Prompt{User: " hi "})
	require.NoError(t, err)
	assert.Equal(t, "You said: hi", out)

	out, err = c.Complete(context.Background(), domain.Prompt{
		User:    "hi",
		Context: []domain.Retrieved{{Text: "earlier"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `You said: hi (recalled 1 memories, closest: "earlier")`, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Complete(ctx, domain.Prompt{User: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}
