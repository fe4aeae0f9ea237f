package flowtrack

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainCapacityBound(t *testing.T) {
	assert := assert.New(t)

	c := NewChain(3)
	assert.Equal(3, c.Cap())
	assert.Equal(0, c.Len())

	seen := make(map[uint32]bool)
	for i := 0; i < 3; i++ {
		slot, err := c.Allocate(int64(i))
		assert.NoError(err)
		assert.False(seen[slot])
		seen[slot] = true
	}
	assert.Equal(3, c.Len())

	occupied := snapshotOccupied(c)
	_, err := c.Allocate(100)
	assert.ErrorIs(err, ErrCapacityExceeded)
	assert.Equal(3, c.Len())
	assert.Equal(occupied, snapshotOccupied(c))
}

func TestChainLIFOReuse(t *testing.T) {
	assert := assert.New(t)

	c := NewChain(3)
	for i := 0; i < 3; i++ {
		slot, err := c.Allocate(int64(i))
		assert.NoError(err)
		assert.Equal(uint32(i), slot)
	}

	assert.True(c.Free(1))
	slot, err := c.Allocate(10)
	assert.NoError(err)
	assert.Equal(uint32(1), slot)
}

func TestChainRecencyOrder(t *testing.T) {
	assert := assert.New(t)

	c := NewChain(3)
	for i := 0; i < 3; i++ {
		_, err := c.Allocate(int64(i))
		assert.NoError(err)
	}

	oldest, ok := c.PeekOldest()
	assert.True(ok)
	assert.Equal(uint32(0), oldest)

	assert.True(c.Touch(0, 3))
	oldest, ok = c.PeekOldest()
	assert.True(ok)
	assert.Equal(uint32(1), oldest)
}

func TestChainAgingOrder(t *testing.T) {
	assert := assert.New(t)
	const maxAge = 1_000_000_000

	c := NewChain(2)
	s0, _ := c.Allocate(0)
	s1, _ := c.Allocate(1)

	slot, ok := c.ExpireOne(2_000_000_001, maxAge)
	assert.True(ok)
	assert.Equal(s0, slot)

	slot, ok = c.ExpireOne(2_000_000_001, maxAge)
	assert.True(ok)
	assert.Equal(s1, slot)

	_, ok = c.ExpireOne(2_000_000_001, maxAge)
	assert.False(ok)
}

func TestChainExpireFreshSlot(t *testing.T) {
	assert := assert.New(t)
	const maxAge = 1_000_000_000

	c := NewChain(2)
	c.Allocate(500)

	// Idle exactly maxAge is not yet expired.
	_, ok := c.ExpireOne(500+maxAge, maxAge)
	assert.False(ok)
	assert.Equal(1, c.Len())

	_, ok = c.ExpireOne(501+maxAge, maxAge)
	assert.True(ok)
	assert.Equal(0, c.Len())
}

func TestChainTouchSoleOccupant(t *testing.T) {
	assert := assert.New(t)

	c := NewChain(2)
	slot, _ := c.Allocate(0)

	assert.True(c.Touch(slot, 5))
	oldest, ok := c.PeekOldest()
	assert.True(ok)
	assert.Equal(slot, oldest)

	// The refreshed timestamp must hold off expiration.
	_, ok = c.ExpireOne(6, 2)
	assert.False(ok)
	_, ok = c.ExpireOne(8, 2)
	assert.True(ok)
}

func TestChainTouchFreeSlot(t *testing.T) {
	assert := assert.New(t)

	c := NewChain(2)
	assert.False(c.Touch(0, 1))
	assert.False(c.Touch(99, 1))
	assert.Equal(0, c.Len())
}

func TestChainNoDoubleFree(t *testing.T) {
	assert := assert.New(t)

	c := NewChain(3)
	slot, _ := c.Allocate(0)
	c.Allocate(1)

	assert.True(c.Free(slot))
	used, free := c.Len(), c.Cap()-c.Len()

	assert.False(c.Free(slot))
	assert.Equal(used, c.Len())
	assert.Equal(free, c.Cap()-c.Len())
	assert.False(c.IsOccupied(slot))
}

func TestChainEmpty(t *testing.T) {
	assert := assert.New(t)

	c := NewChain(0)
	_, err := c.Allocate(0)
	assert.ErrorIs(err, ErrCapacityExceeded)
	_, ok := c.PeekOldest()
	assert.False(ok)
}

// TestChainRandomOps drives the chain against a slice-based model.
func TestChainRandomOps(t *testing.T) {
	assert := assert.New(t)
	const capacity = 64

	c := NewChain(capacity)
	model := make([]uint32, 0, capacity) // oldest first
	rng := rand.New(rand.NewPCG(11, 22))

	remove := func(slot uint32) {
		for i, s := range model {
			if s == slot {
				model = append(model[:i], model[i+1:]...)
				return
			}
		}
	}

	for now := int64(1); now < 20000; now++ {
		switch rng.IntN(4) {
		case 0:
			slot, err := c.Allocate(now)
			if len(model) == capacity {
				assert.ErrorIs(err, ErrCapacityExceeded)
			} else {
				assert.NoError(err)
				model = append(model, slot)
			}
		case 1:
			slot := uint32(rng.IntN(capacity))
			occupied := c.IsOccupied(slot)
			assert.Equal(occupied, c.Touch(slot, now))
			if occupied {
				remove(slot)
				model = append(model, slot)
			}
		case 2:
			slot := uint32(rng.IntN(capacity))
			occupied := c.IsOccupied(slot)
			assert.Equal(occupied, c.Free(slot))
			remove(slot)
		case 3:
			oldest, ok := c.PeekOldest()
			assert.Equal(len(model) > 0, ok)
			if ok {
				assert.Equal(model[0], oldest)
			}
		}
		assert.Equal(len(model), c.Len())
	}
}

// snapshotOccupied walks the occupancy list oldest to newest.
func snapshotOccupied(c *Chain) []uint32 {
	var slots []uint32
	for idx := c.cells[occupiedHead].next; idx != occupiedHead; idx = c.cells[idx].next {
		slots = append(slots, idx-indexShift)
	}
	return slots
}
