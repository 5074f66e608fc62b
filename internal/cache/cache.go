// Package cache provides the single-slot TTL cache for the current stats
// snapshot. It is not a general key-value store: cardinality is exactly one,
// so there is no eviction, only wholesale replacement.
package cache

import (
	"sync"
	"time"
)

// Slot holds one value with a TTL. Reads after expiry are misses, but the
// last value remains reachable via Last for stale fallback. The value is
// replaced wholesale, never mutated in place.
type Slot[T any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	value     T
	fetchedAt time.Time
	filled    bool
}

// Option configures a Slot.
type Option[T any] func(*Slot[T])

// WithClock substitutes the time source (used in tests).
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Slot[T]) {
		s.now = now
	}
}

// New creates an empty slot with the given TTL.
func New[T any](ttl time.Duration, opts ...Option[T]) *Slot[T] {
	s := &Slot[T]{
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value and its age. ok is false when the slot is
// empty or the entry has outlived its TTL.
func (s *Slot[T]) Get() (value T, age time.Duration, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.filled {
		return value, 0, false
	}
	age = s.now().Sub(s.fetchedAt)
	if age > s.ttl {
		return value, 0, false
	}
	return s.value, age, true
}

// Last returns the most recent value regardless of expiry, for callers that
// prefer stale data over no data.
func (s *Slot[T]) Last() (value T, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.filled {
		return value, false
	}
	return s.value, true
}

// Set replaces the slot contents and resets the age to zero.
func (s *Slot[T]) Set(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	s.fetchedAt = s.now()
	s.filled = true
}
