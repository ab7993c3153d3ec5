// Package mock provides a deterministic embedder for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"memchat/internal/domain"
	"memchat/internal/vector"
)

const DefaultDimension = 384

// Embedder maps each distinct text to a pseudo-random unit vector seeded by
// the text's hash. Equal texts always embed to equal vectors.
type Embedder struct {
	dimension int

	mu     sync.Mutex
	failOn func(text string) bool
	delay  time.Duration
	calls  int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (m *Embedder) Name() string { return "mock" }

func (m *Embedder) Dimension() int { return m.dimension }

// FailOn makes Embed return a transient *domain.EmbeddingError for every text
// the predicate accepts. nil clears it.
func (m *Embedder) FailOn(pred func(text string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = pred
}

// SetDelay makes each Embed call wait d or until ctx is done.
func (m *Embedder) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls reports how many times Embed has been called.
func (m *Embedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	failOn, delay := m.failOn, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, domain.NewEmbeddingError(true, ctx.Err())
		}
	}
	if failOn != nil && failOn(text) {
		return nil, domain.NewEmbeddingError(true, errors.New("mock: embedding refused"))
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimension)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return vector.Normalize(vec), nil
}
