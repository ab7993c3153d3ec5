package chromem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"memchat/internal/domain"
	"memchat/internal/vector"
)

// Storage is an Index backed by a chromem-go collection. chromem-go scores by
// cosine similarity only. It selects the candidates; their distances are
// recomputed in float64 from the inserted vectors so a vector queried with
// itself is at distance 0.
type Storage struct {
	mu        sync.Mutex
	dimension int
	col       *chromem.Collection
	vectors   [][]float32 // by slot
}

// ErrZeroVector is returned for vectors that cannot be normalized.
var ErrZeroVector = errors.New("chromem: zero-magnitude vector")

// NewStorage creates an in-process chromem database with one collection.
func NewStorage(dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	db := chromem.NewDB()
	// no embedding func: vectors are always supplied by the caller
	col, err := db.CreateCollection("memchat", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Storage{dimension: dimension, col: col}, nil
}

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Metric() vector.Metric { return vector.MetricCosine }

func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vectors)
}

func (s *Storage) Validate(vec []float32) error {
	if len(vec) != s.dimension {
		return domain.DimensionError(len(vec), s.dimension)
	}
	if isZero(vec) {
		return ErrZeroVector
	}
	return nil
}

func (s *Storage) Insert(vec []float32) (int, error) {
	if err := s.Validate(vec); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := len(s.vectors)
	id := strconv.Itoa(slot)
	kept := append([]float32(nil), vec...)
	doc := chromem.Document{
		ID:        id,
		Content:   id,
		Embedding: append([]float32(nil), vec...),
	}
	if err := s.col.AddDocument(context.Background(), doc); err != nil {
		return 0, fmt.Errorf("add document: %w", err)
	}
	s.vectors = append(s.vectors, kept)
	return slot, nil
}

func (s *Storage) Search(query []float32, k int) ([]domain.Hit, error) {
	if len(query) != s.dimension {
		return nil, domain.DimensionError(len(query), s.dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}
	if isZero(query) {
		return nil, ErrZeroVector
	}
	// chromem-go orders ties arbitrarily, so rank the whole collection and
	// apply the slot tie-break here.
	results, err := s.col.QueryEmbedding(context.Background(), query, len(s.vectors), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]domain.Hit, 0, len(results))
	for _, r := range results {
		slot, err := strconv.Atoi(r.ID)
		if err != nil || slot < 0 || slot >= len(s.vectors) {
			return nil, fmt.Errorf("chromem: unexpected document id %q", r.ID)
		}
		d, err := vector.CosineDistance(query, s.vectors[slot])
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.Hit{Slot: slot, Distance: d})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Slot < hits[j].Slot
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
