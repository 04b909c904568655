// Package queue provides small thread-safe collection primitives.
package queue

import "sync"

// Ring is a generic thread-safe bounded series. Once the capacity is
// reached, pushing evicts from the head (oldest first). Readers always get
// a snapshot copy, never the mutating backing slice.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	cap   int
}

// NewRing creates a ring with the given capacity. Capacity must be positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Push appends items, evicting the oldest entries once the ring is full.
func (r *Ring[T]) Push(items ...T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
	if over := len(r.items) - r.cap; over > 0 {
		r.items = append(r.items[:0], r.items[over:]...)
	}
}

// Snapshot returns a copy of the current contents, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of items currently held.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return r.cap
}

// Clear removes all items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = r.items[:0]
}
