// Package inflight tracks which request keys have an outstanding remote call.
package inflight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker records in-flight keys so an equal request is never issued twice
// while the first is still outstanding.
type Tracker[K comparable] interface {
	// Begin atomically checks whether key is in flight and records it if not.
	// Returns true if the caller now owns the call, false if one is outstanding.
	Begin(ctx context.Context, key K) bool

	// Done releases key once its call has settled, allowing a new attempt.
	Done(ctx context.Context, key K)

	// Pending reports whether key is in flight.
	Pending(key K) bool

	// Clear releases every key, for calls that will never settle.
	Clear(ctx context.Context)

	Size() int64
}

type memoryTracker[K comparable] struct {
	mu       sync.Mutex
	pending  map[K]struct{}
	size     atomic.Int64
	onChange func(size int64)
}

// NewTracker creates an in-memory tracker.
func NewTracker[K comparable](opts ...Option) Tracker[K] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &memoryTracker[K]{
		pending:  make(map[K]struct{}),
		onChange: o.onChange,
	}
}

func (t *memoryTracker[K]) Begin(_ context.Context, key K) bool {
	t.mu.Lock()
	if _, exists := t.pending[key]; exists {
		t.mu.Unlock()
		return false
	}
	t.pending[key] = struct{}{}
	n := t.size.Add(1)
	t.mu.Unlock()

	t.report(n)
	return true
}

func (t *memoryTracker[K]) Done(_ context.Context, key K) {
	t.mu.Lock()
	if _, exists := t.pending[key]; !exists {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	n := t.size.Add(-1)
	t.mu.Unlock()

	t.report(n)
}

func (t *memoryTracker[K]) Pending(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.pending[key]
	return exists
}

func (t *memoryTracker[K]) Clear(_ context.Context) {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	clear(t.pending)
	t.size.Store(0)
	t.mu.Unlock()

	t.report(0)
}

func (t *memoryTracker[K]) Size() int64 {
	return t.size.Load()
}

func (t *memoryTracker[K]) report(n int64) {
	if t.onChange != nil {
		t.onChange(n)
	}
}
