package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memchat/internal/domain"
)

func TestBridge_RegisterResolve(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.Register(42))
	assert.Equal(t, 1, b.Register(7))
	assert.Equal(t, 2, b.Register(42))

	id, err := b.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	id, err = b.Resolve(2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 3, b.Len())
}

func TestBridge_UnknownSlot(t *testing.T) {
	b := New()
	b.Register(1)
	for _, slot := range []int{-1, 1, 100} {
		_, err := b.Resolve(slot)
		assert.True(t, errors.Is(err, domain.ErrUnknownSlot), "slot %d", slot)
	}
}

func TestBridge_ReplayIsDeterministic(t *testing.T) {
	history := []int64{5, 9, 5, 11}
	a, b := New(), New()
	for _, id := range history {
		sa, sb := a.Register(id), b.Register(id)
		assert.Equal(t, sa, sb)
	}
	for slot := range history {
		ia, _ := a.Resolve(slot)
		ib, _ := b.Resolve(slot)
		assert.Equal(t, ia, ib)
	}
}
