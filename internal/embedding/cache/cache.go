// Package cache memoizes embeddings in a bounded in-process cache.
package cache

import (
	"context"

	"github.com/dgraph-io/ristretto"

	"memchat/internal/domain"
)

const DefaultMaxEntries = 10000

// Embedder wraps another domain.Embedder. Only successful embeddings are
// cached; failures always reach the wrapped embedder again on the next call.
type Embedder struct {
	inner domain.Embedder
	cache *ristretto.Cache
}

func New(inner domain.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Embedder{inner: inner, cache: c}, nil
}

func (e *Embedder) Name() string { return e.inner.Name() }

func (e *Embedder) Dimension() int { return e.inner.Dimension() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, append([]float32(nil), vec...), 1)
	return vec, nil
}

// Wait blocks until pending writes are visible to Get.
func (e *Embedder) Wait() { e.cache.Wait() }

func (e *Embedder) Close() { e.cache.Close() }
