package memory

import (
	"errors"
	"sort"
	"sync"

	"memchat/internal/domain"
	"memchat/internal/vector"
)

// Storage is a flat in-memory index using exhaustive distance computation.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	metric    vector.Metric
	vectors   [][]float32
}

func NewStorage(dimension int, metric vector.Metric) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	if metric == "" {
		metric = vector.MetricL2Squared
	}
	return &Storage{dimension: dimension, metric: metric}, nil
}

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Metric() vector.Metric { return s.metric }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *Storage) Validate(vec []float32) error {
	if len(vec) != s.dimension {
		return domain.DimensionError(len(vec), s.dimension)
	}
	return nil
}

func (s *Storage) Insert(vec []float32) (int, error) {
	if err := s.Validate(vec); err != nil {
		return 0, err
	}
	cp := append([]float32(nil), vec...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, cp)
	return len(s.vectors) - 1, nil
}

func (s *Storage) Search(query []float32, k int) ([]domain.Hit, error) {
	if len(query) != s.dimension {
		return nil, domain.DimensionError(len(query), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}
	hits := make([]domain.Hit, len(s.vectors))
	for slot, v := range s.vectors {
		d, err := s.metric.Distance(query, v)
		if err != nil {
			return nil, err
		}
		hits[slot] = domain.Hit{Slot: slot, Distance: d}
	}
	// hits start in slot order, so a stable sort keeps lower slots first on ties
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}
