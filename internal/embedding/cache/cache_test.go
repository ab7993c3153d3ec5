package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/embedding/mock"
)

func TestEmbedder_CachesSuccessfulEmbeddings(t *testing.T) {
	inner := mock.New(8)
	e, err := New(inner, 100)
	require.NoError(t, err)
	defer e.Close()

	first, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	e.Wait()

	second, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.Calls())
	assert.Equal(t, "mock", e.Name())
	assert.Equal(t, 8, e.Dimension())
}

func TestEmbedder_DoesNotCacheFailures(t *testing.T) {
	inner := mock.New(8)
	inner.FailOn(func(string) bool { return true })
	e, err := New(inner, 100)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "x")
	require.Error(t, err)
	e.Wait()

	inner.FailOn(nil)
	_, err = e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())
}
