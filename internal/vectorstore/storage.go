package vectorstore

import (
	"memchat/internal/domain"
	"memchat/internal/vector"
)

// Index is an in-memory nearest-neighbour index addressed by slot ids.
// Slots are assigned sequentially from 0 in insertion order. Vectors whose
// length differs from Dimension are rejected with domain.ErrDimensionMismatch.
type Index interface {
	Dimension() int
	Metric() vector.Metric
	Len() int
	// Validate reports whether Insert would accept vec, without inserting it.
	Validate(vec []float32) error
	Insert(vec []float32) (int, error)
	// Search returns up to k hits ordered by ascending distance, ties broken
	// by lower slot. An empty index or k <= 0 yields no hits.
	Search(query []float32, k int) ([]domain.Hit, error)
}
