// Package queue provides the fixed-capacity queue used wherever click cues are
// buffered. Click cues are real-time: when a consumer falls behind, the oldest
// undelivered entry is discarded rather than letting the buffer grow.
package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// ErrClosed is returned by Pop once the ring is closed and drained.
var ErrClosed = errors.New("queue closed")

// Ring is a fixed-capacity FIFO. When full, Push overwrites the oldest
// element. All methods are safe for concurrent use.
type Ring[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	count  int
	closed bool

	ready   chan struct{}
	done    chan struct{}
	dropped atomic.Uint64
}

// NewRing creates a ring with the given capacity. Capacities below one are
// raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends item, discarding the oldest element if the ring is full. It
// reports whether an element was discarded. Pushing to a closed ring is a no-op.
func (r *Ring[T]) Push(item T) (dropped bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = item
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		dropped = true
	} else {
		r.count++
	}
	r.mu.Unlock()

	if dropped {
		r.dropped.Inc()
	}
	select {
	case r.ready <- struct{}{}:
	default:
	}
	return dropped
}

// TryPop removes and returns the oldest element without blocking.
func (r *Ring[T]) TryPop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.popLocked()
}

func (r *Ring[T]) popLocked() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	item := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return item, true
}

// Pop blocks until an element is available, ctx is done, or the ring is
// closed and empty.
func (r *Ring[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		r.mu.Lock()
		item, ok := r.popLocked()
		closed := r.closed
		r.mu.Unlock()

		if ok {
			return item, nil
		}
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-r.ready:
		case <-r.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Drain removes and returns every pending element, oldest first.
func (r *Ring[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, r.count)
	for {
		item, ok := r.popLocked()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

// Ready fires after a Push. A wake-up may be spurious; callers drain with
// TryPop until it reports false.
func (r *Ring[T]) Ready() <-chan struct{} {
	return r.ready
}

// Done is closed by Close.
func (r *Ring[T]) Done() <-chan struct{} {
	return r.done
}

// Close stops accepting new elements. Pending elements can still be popped.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
}

// Len returns the number of pending elements.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Dropped returns how many elements were discarded by overflow.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}
