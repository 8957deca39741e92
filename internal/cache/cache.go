// Package cache provides a small in-process TTL cache used both per source
// adapter and for aggregated result sets. Each cache is an explicit object
// owned by whatever component constructs it — created at service startup,
// discarded at shutdown — never process-wide shared state.
//
// Entries are immutable once stored: Set replaces the entry wholesale, so a
// concurrent reader either sees the old complete entry or the new complete
// entry, never a partial write.
package cache

import (
	"sync"
	"time"
)

// Entry wraps a cached value with the instant it was stored.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
}

// Store is a TTL-bounded key/value cache. An entry is valid if and only if
// now - timestamp < ttl.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
	ttl     time.Duration
	now     func() time.Time // Injectable clock for tests
}

// New creates a Store with the given TTL.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		entries: make(map[string]Entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the store's validity window.
func (s *Store[T]) TTL() time.Duration {
	return s.ttl
}

// Get returns the cached value for key and true when a valid entry exists.
// An expired entry reports a miss; it is left in place for Sweep to collect.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || s.now().Sub(entry.Timestamp) >= s.ttl {
		var zero T
		return zero, false
	}
	return entry.Data, true
}

// Set stores data under key, atomically replacing any previous entry.
func (s *Store[T]) Set(key string, data T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = Entry[T]{Data: data, Timestamp: s.now()}
}

// Delete removes the entry for key, if any.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Clear drops every entry. Used as the administrative "refresh now" hook.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry[T])
}

// Sweep drops all expired entries and returns how many were removed. It is
// intended to run on a timer; Get never depends on it for correctness.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if now.Sub(entry.Timestamp) >= s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
