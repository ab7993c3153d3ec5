package chromem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/domain"
)

func TestStorage_InsertAndSearch(t *testing.T) {
	s, err := NewStorage(3)
	require.NoError(t, err)

	hits, err := s.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	for i, v := range [][]float32{{0, 1, 0}, {1, 0, 0}, {0, 0, 1}} {
		slot, err := s.Insert(v)
		require.NoError(t, err)
		assert.Equal(t, i, slot)
	}
	assert.Equal(t, 3, s.Len())

	hits, err = s.Search([]float32{2, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Slot)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	assert.InDelta(t, 1, hits[1].Distance, 1e-5)
	assert.Equal(t, 0, hits[1].Slot)
}

func TestStorage_Rejects(t *testing.T) {
	s, err := NewStorage(2)
	require.NoError(t, err)

	_, err = s.Insert([]float32{1, 2, 3})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	_, err = s.Insert([]float32{0, 0})
	assert.ErrorIs(t, err, ErrZeroVector)
	assert.Equal(t, 0, s.Len())
}

func TestStorage_SelfQueryIsAtDistanceZero(t *testing.T) {
	s, err := NewStorage(4)
	require.NoError(t, err)

	vecs := [][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{0.9, -0.1, 0.05, 0.3},
		{0.33333334, 0.6666667, -0.1, 0.2},
	}
	for _, v := range vecs {
		_, err := s.Insert(v)
		require.NoError(t, err)
	}
	for slot, v := range vecs {
		hits, err := s.Search(v, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, slot, hits[0].Slot)
		assert.Zero(t, hits[0].Distance)
	}
}

func TestStorage_DuplicatesTieOnLowestSlot(t *testing.T) {
	s, err := NewStorage(3)
	require.NoError(t, err)

	v := []float32{0.2, 0.4, 0.6}
	for i := 0; i < 3; i++ {
		_, err := s.Insert(v)
		require.NoError(t, err)
	}
	hits, err := s.Search(v, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i, h := range hits {
		assert.Equal(t, i, h.Slot)
		assert.Zero(t, h.Distance)
	}
}
