// Package store provides a small observable value container. Rendering
// layers subscribe to state changes instead of holding references into the
// core, which keeps the round/dashboard/party logic framework-agnostic and
// unit-testable without a component tree.
package store

import "sync"

// Store holds a single value of type T and notifies subscribers when it is
// replaced. Values are replaced wholesale, never patched in place.
type Store[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[int]func(T)
	next  int
}

func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: map[int]func(T){}}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies all subscribers synchronously, in
// the caller's goroutine. Subscribers must not call back into the store
// while handling a notification.
func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	fns := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers fn to run on every Set. The returned function
// removes the subscription; calling it more than once is harmless.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
