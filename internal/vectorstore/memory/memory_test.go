package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/domain"
	"memchat/internal/vector"
)

func TestStorage_InsertAssignsSequentialSlots(t *testing.T) {
	s, err := NewStorage(2, vector.MetricL2Squared)
	require.NoError(t, err)

	for want := 0; want < 3; want++ {
		slot, err := s.Insert([]float32{float32(want), 0})
		require.NoError(t, err)
		assert.Equal(t, want, slot)
	}
	assert.Equal(t, 3, s.Len())
}

func TestStorage_SearchEmpty(t *testing.T) {
	s, err := NewStorage(3, "")
	require.NoError(t, err)

	for _, k := range []int{-1, 0, 1, 10} {
		hits, err := s.Search([]float32{1, 2, 3}, k)
		require.NoError(t, err)
		assert.Empty(t, hits, "k=%d", k)
	}
}

func TestStorage_DimensionMismatchLeavesSizeUnchanged(t *testing.T) {
	s, err := NewStorage(2, vector.MetricL2Squared)
	require.NoError(t, err)
	_, err = s.Insert([]float32{1, 1})
	require.NoError(t, err)

	_, err = s.Insert([]float32{1, 2, 3})
	require.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	assert.Equal(t, 1, s.Len())

	_, err = s.Search([]float32{1}, 1)
	require.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestStorage_SearchOrdersByDistanceThenSlot(t *testing.T) {
	s, err := NewStorage(2, vector.MetricL2Squared)
	require.NoError(t, err)

	vecs := [][]float32{{3, 0}, {1, 0}, {0, 1}, {1, 0}}
	for _, v := range vecs {
		_, err := s.Insert(v)
		require.NoError(t, err)
	}

	hits, err := s.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, domain.Hit{Slot: 1, Distance: 0}, hits[0])
	assert.Equal(t, domain.Hit{Slot: 3, Distance: 0}, hits[1])
	assert.Equal(t, domain.Hit{Slot: 2, Distance: 2}, hits[2])

	hits, err = s.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 4)
}

func TestStorage_CosineMetric(t *testing.T) {
	s, err := NewStorage(2, vector.MetricCosine)
	require.NoError(t, err)
	_, err = s.Insert([]float32{0, 5})
	require.NoError(t, err)
	_, err = s.Insert([]float32{10, 0})
	require.NoError(t, err)

	hits, err := s.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Slot)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)
}

func TestStorage_InsertCopiesInput(t *testing.T) {
	s, err := NewStorage(2, vector.MetricL2Squared)
	require.NoError(t, err)
	v := []float32{1, 1}
	_, err = s.Insert(v)
	require.NoError(t, err)
	v[0] = 100

	hits, err := s.Search([]float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, hits[0].Distance)
}
