// Package bridge maps vector index slots to persistent store ids.
//
// Slots are allocated sequentially and mappings are append-only, so replaying
// the same insertion history always yields the same slot assignment. Callers
// outside the memory service never address vectors by raw slot.
package bridge

import (
	"fmt"
	"sync"

	"memchat/internal/domain"
)

type Bridge struct {
	mu    sync.RWMutex
	slots []int64
}

func New() *Bridge { return &Bridge{} }

// Register allocates the next slot for storeID and returns it.
func (b *Bridge) Register(storeID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = append(b.slots, storeID)
	return len(b.slots) - 1
}

// Resolve returns the store id registered for slot.
func (b *Bridge) Resolve(slot int) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if slot < 0 || slot >= len(b.slots) {
		return 0, fmt.Errorf("%w: %d", domain.ErrUnknownSlot, slot)
	}
	return b.slots[slot], nil
}

// Len returns the number of registered slots.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.slots)
}
