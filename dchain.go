package flowtrack

import "errors"

// ErrCapacityExceeded is returned by Chain.Allocate and Tracker.Insert when
// every slot is occupied. The caller decides whether to drop the record or
// force an expiration to make room.
var ErrCapacityExceeded = errors.New("flowtrack: capacity exceeded")

// The cell array holds two reserved cells ahead of the real slots.
// occupiedHead anchors the doubly linked occupancy list (oldest at
// occupiedHead.next, newest at occupiedHead.prev). freeHead anchors the
// singly linked free list (LIFO). Real slot ids are offset by indexShift
// inside the array; callers only ever see ids in [0, capacity).
const (
	occupiedHead = 0
	freeHead     = 1
	indexShift   = 2
)

type slotState uint8

const (
	slotFree slotState = iota
	slotOccupied
)

// cell is one link record of the chain. Links are plain indices into the
// cell array. The state tag is authoritative: links of a free cell other
// than next are stale and never read.
type cell struct {
	prev, next uint32
	state      slotState
}

// Chain is a fixed-capacity index arena. It hands out dense slot ids and
// keeps the occupied ones ordered by recency, so the least recently touched
// slot is always reachable in O(1). Freed slots are reused most recent
// first. All operations are a constant number of link updates, no scanning.
//
// Chain is not safe for concurrent use.
type Chain struct {
	cells []cell
	times []int64 // last-touch unix nanos, one per real slot
	used  int
}

// NewChain creates a chain with the given number of slots, all free.
func NewChain(capacity int) *Chain {
	if capacity < 0 || uint64(capacity)+indexShift > 1<<32 {
		panic("flowtrack: invalid chain capacity")
	}

	c := &Chain{
		cells: make([]cell, capacity+indexShift),
		times: make([]int64, capacity),
	}

	oh := &c.cells[occupiedHead]
	oh.prev, oh.next = occupiedHead, occupiedHead

	// Thread all real cells onto the free list in ascending order.
	c.cells[freeHead].next = freeHead
	for i := capacity - 1; i >= 0; i-- {
		idx := uint32(i) + indexShift
		c.cells[idx].next = c.cells[freeHead].next
		c.cells[freeHead].next = idx
	}
	return c
}

// Cap returns the total number of slots.
func (c *Chain) Cap() int { return len(c.times) }

// Len returns the number of occupied slots.
func (c *Chain) Len() int { return c.used }

// IsOccupied reports whether slot is currently allocated.
func (c *Chain) IsOccupied(slot uint32) bool {
	if int(slot) >= len(c.times) {
		return false
	}
	return c.cells[slot+indexShift].state == slotOccupied
}

// Allocate pops a slot off the free list, links it at the newest end of the
// occupancy list and stamps it with now. It fails with ErrCapacityExceeded
// when every slot is occupied, leaving the chain untouched.
func (c *Chain) Allocate(now int64) (uint32, error) {
	idx := c.cells[freeHead].next
	if idx == freeHead {
		return 0, ErrCapacityExceeded
	}
	cl := &c.cells[idx]
	c.cells[freeHead].next = cl.next

	c.linkNewest(idx, cl)
	cl.state = slotOccupied
	c.used++

	slot := idx - indexShift
	c.times[slot] = now
	return slot, nil
}

// Touch refreshes the recency of an occupied slot, splicing it to the
// newest end of the occupancy list and restamping it with now. It returns
// false without changing anything if the slot is not occupied.
func (c *Chain) Touch(slot uint32, now int64) bool {
	if int(slot) >= len(c.times) {
		return false
	}
	idx := slot + indexShift
	cl := &c.cells[idx]
	if cl.state != slotOccupied {
		return false
	}

	c.times[slot] = now
	if cl.next == occupiedHead {
		// Already the newest entry.
		return true
	}

	c.cells[cl.prev].next = cl.next
	c.cells[cl.next].prev = cl.prev
	c.linkNewest(idx, cl)
	return true
}

// Free unlinks an occupied slot and pushes it onto the free list. It
// returns false without changing anything if the slot is already free.
func (c *Chain) Free(slot uint32) bool {
	if int(slot) >= len(c.times) {
		return false
	}
	idx := slot + indexShift
	cl := &c.cells[idx]
	if cl.state != slotOccupied {
		return false
	}

	c.cells[cl.prev].next = cl.next
	c.cells[cl.next].prev = cl.prev

	cl.next = c.cells[freeHead].next
	c.cells[freeHead].next = idx
	cl.state = slotFree
	c.used--
	return true
}

// PeekOldest returns the least recently touched occupied slot, or false if
// nothing is occupied. It never mutates the chain.
func (c *Chain) PeekOldest() (uint32, bool) {
	next := c.cells[occupiedHead].next
	if next == occupiedHead {
		return 0, false
	}
	return next - indexShift, true
}

// ExpireOne frees and returns the oldest slot if it has been idle longer
// than maxAge relative to now. At most one slot is freed per call; callers
// drain by looping until the second return is false.
func (c *Chain) ExpireOne(now, maxAge int64) (uint32, bool) {
	slot, ok := c.PeekOldest()
	if !ok || c.times[slot] >= now-maxAge {
		return 0, false
	}
	c.Free(slot)
	return slot, true
}

// linkNewest appends cell idx right before occupiedHead.
func (c *Chain) linkNewest(idx uint32, cl *cell) {
	oh := &c.cells[occupiedHead]
	cl.next = occupiedHead
	cl.prev = oh.prev
	c.cells[oh.prev].next = idx
	oh.prev = idx
}
