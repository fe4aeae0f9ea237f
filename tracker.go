package flowtrack

import "github.com/tidwall/hashmap"

// Tracker associates opaque keys with chain slots. The forward map answers
// membership queries, the reverse table translates expired slots back into
// keys. For every occupied slot both directions agree; reverse entries of
// free slots are stale and only ever overwritten.
//
// Like the chain it wraps, a Tracker expects a single logical caller.
type Tracker[K comparable] struct {
	chain *Chain
	index *hashmap.Map[K, uint32]
	keys  []K

	// OnEvict, if set, is called for every key removed by ExpireAging.
	OnEvict func(K)
}

// NewTracker creates a tracker over a fresh chain with the given capacity.
func NewTracker[K comparable](capacity int) *Tracker[K] {
	return &Tracker[K]{
		chain: NewChain(capacity),
		index: new(hashmap.Map[K, uint32]),
		keys:  make([]K, capacity),
	}
}

// Contains reports whether key is currently tracked.
func (t *Tracker[K]) Contains(key K) bool {
	_, ok := t.index.Get(key)
	return ok
}

// Insert starts tracking key as of now. Inserting a key that is already
// tracked is a no-op and does not refresh its recency; use Touch for that.
// It returns ErrCapacityExceeded when the chain is full.
func (t *Tracker[K]) Insert(key K, now int64) error {
	if _, ok := t.index.Get(key); ok {
		return nil
	}
	slot, err := t.chain.Allocate(now)
	if err != nil {
		return err
	}
	t.keys[slot] = key
	t.index.Set(key, slot)
	return nil
}

// Touch refreshes the recency of a tracked key. It returns false if the key
// is not currently tracked.
func (t *Tracker[K]) Touch(key K, now int64) bool {
	slot, ok := t.index.Get(key)
	if !ok {
		return false
	}
	return t.chain.Touch(slot, now)
}

// ExpireAging removes every key whose slot has been idle longer than maxAge
// relative to now, oldest first, and returns the number of keys removed.
func (t *Tracker[K]) ExpireAging(now, maxAge int64) int {
	var n int
	for {
		slot, ok := t.chain.ExpireOne(now, maxAge)
		if !ok {
			return n
		}
		key := t.keys[slot]
		t.index.Delete(key)
		if t.OnEvict != nil {
			t.OnEvict(key)
		}
		n++
	}
}

// Len returns the number of tracked keys.
func (t *Tracker[K]) Len() int { return t.index.Len() }

// Cap returns the maximum number of concurrently tracked keys.
func (t *Tracker[K]) Cap() int { return t.chain.Cap() }
