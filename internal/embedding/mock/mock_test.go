package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/domain"
)

func TestEmbedder_Deterministic(t *testing.T) {
	m := New(16)
	a, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	c, err := m.Embed(context.Background(), "world")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
	assert.Equal(t, 3, m.Calls())
}

func TestEmbedder_FailOn(t *testing.T) {
	m := New(4)
	m.FailOn(func(text string) bool { return text == "bad" })

	_, err := m.Embed(context.Background(), "bad")
	var ee *domain.EmbeddingError
	require.True(t, errors.As(err, &ee))
	assert.True(t, ee.Transient)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))

	_, err = m.Embed(context.Background(), "good")
	assert.NoError(t, err)
}

func TestEmbedder_DelayHonoursContext(t *testing.T) {
	m := New(4)
	m.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Embed(ctx, "slow")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
