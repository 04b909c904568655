package httpapi

import (
	"sync"
	"time"
)

// revalidated holds a computed value and recomputes it once its ttl lapses.
// Callers inside the window share the cached computation, which keeps viewer
// polling from multiplying upstream roster calls. Invalidate forces the next
// Get to recompute, used after an accepted push so readers see it
// immediately.
type revalidated[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	compute func() T

	value T
	at    time.Time
	valid bool
}

func newRevalidated[T any](ttl time.Duration, now func() time.Time, compute func() T) *revalidated[T] {
	return &revalidated[T]{
		ttl:     ttl,
		now:     now,
		compute: compute,
	}
}

func (c *revalidated[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Sub(c.at) < c.ttl {
		return c.value
	}

	c.value = c.compute()
	c.at = c.now()
	c.valid = true
	return c.value
}

func (c *revalidated[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
