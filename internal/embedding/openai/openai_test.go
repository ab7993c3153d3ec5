package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/domain"
)

func embeddingServer(t *testing.T, handler func(call int32, w http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		handler(calls.Add(1), w)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeEmbedding(w http.ResponseWriter, vec []float32) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  "test",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": vec},
		},
	})
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": http.StatusText(status), "type": "test_error"},
	})
}

func newTestEmbedder(t *testing.T, url string, dim int) *Embedder {
	t.Helper()
	t.Setenv("MEMCHAT_TEST_KEY", "sk-test")
	e, err := New(Config{BaseURL: url, APIKeyEnv: "MEMCHAT_TEST_KEY", Model: "test", Dimension: dim, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	return e
}

func TestEmbedder_Embed(t *testing.T) {
	srv, _ := embeddingServer(t, func(_ int32, w http.ResponseWriter) {
		writeEmbedding(w, []float32{0.25, 0.5, 0.75})
	})
	e := newTestEmbedder(t, srv.URL, 3)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5, 0.75}, vec)
	assert.Equal(t, "openai:test", e.Name())
}

func TestEmbedder_RetriesRateLimit(t *testing.T) {
	srv, calls := embeddingServer(t, func(call int32, w http.ResponseWriter) {
		if call == 1 {
			writeError(w, http.StatusTooManyRequests)
			return
		}
		writeEmbedding(w, []float32{1, 0})
	})
	e := newTestEmbedder(t, srv.URL, 2)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedder_PermanentFailure(t *testing.T) {
	srv, calls := embeddingServer(t, func(_ int32, w http.ResponseWriter) {
		writeError(w, http.StatusUnauthorized)
	})
	e := newTestEmbedder(t, srv.URL, 2)

	_, err := e.Embed(context.Background(), "hello")
	var ee *domain.EmbeddingError
	require.True(t, errors.As(err, &ee))
	assert.False(t, ee.Transient)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	srv, _ := embeddingServer(t, func(_ int32, w http.ResponseWriter) {
		writeEmbedding(w, []float32{1, 2, 3})
	})
	e := newTestEmbedder(t, srv.URL, 2)

	_, err := e.Embed(context.Background(), "hello")
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
}

func TestNew_RequiresKeyForDefaultEndpoint(t *testing.T) {
	t.Setenv("MEMCHAT_EMPTY_KEY", "")
	_, err := New(Config{APIKeyEnv: "MEMCHAT_EMPTY_KEY"})
	assert.Error(t, err)
}
