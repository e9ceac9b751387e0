package state

import "sync"

type entry[T Session[T]] struct {
	mu      sync.Mutex
	value   T
	removed bool
}

// Store keeps one session per user id. The map lock only guards lookups;
// each entry carries its own lock so slow mutations for one user never block another.
//
// Lock order is entry.mu before Store.mu, never the reverse.
type Store[T Session[T]] struct {
	mu      sync.Mutex
	entries map[int64]*entry[T]
	factory Factory[T]
}

// NewMemoryStore constructs an in-memory Store using factory for new sessions.
func NewMemoryStore[T Session[T]](factory Factory[T]) *Store[T] {
	return &Store[T]{
		entries: make(map[int64]*entry[T]),
		factory: factory,
	}
}

func (s *Store[T]) lookup(userID int64) *entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[userID]
}

// Create installs a fresh session for the user, discarding any previous one.
// Pending mutations on the discarded session observe ErrNoSession.
func (s *Store[T]) Create(userID int64) T {
	fresh := &entry[T]{value: s.factory(userID)}
	snapshot := fresh.value.Clone()

	s.mu.Lock()
	old := s.entries[userID]
	s.entries[userID] = fresh
	s.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.removed = true
		old.mu.Unlock()
	}
	return snapshot
}

// GetOrCreate returns a snapshot of the user's session, creating one when absent.
func (s *Store[T]) GetOrCreate(userID int64) T {
	for {
		s.mu.Lock()
		e, ok := s.entries[userID]
		if !ok {
			e = &entry[T]{value: s.factory(userID)}
			s.entries[userID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			snapshot := e.value.Clone()
			e.mu.Unlock()
			return snapshot
		}
		e.mu.Unlock()
	}
}

// Get returns a snapshot of the user's session.
func (s *Store[T]) Get(userID int64) (T, bool) {
	var zero T
	e := s.lookup(userID)
	if e == nil {
		return zero, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return zero, false
	}
	return e.value.Clone(), true
}

// Update applies fn to the user's session under that user's lock.
// fn receives the live value; it must not retain it after returning.
// A non-nil error from fn is returned as is; mutations made before it stay applied.
func (s *Store[T]) Update(userID int64, fn func(T) error) error {
	e := s.lookup(userID)
	if e == nil {
		return ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrNoSession
	}
	return fn(e.value)
}

// Finish applies fn and, when it succeeds, removes the session in the same critical section.
// It returns a snapshot of the final value.
func (s *Store[T]) Finish(userID int64, fn func(T) error) (T, error) {
	var zero T
	e := s.lookup(userID)
	if e == nil {
		return zero, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return zero, ErrNoSession
	}
	if err := fn(e.value); err != nil {
		return zero, err
	}
	e.removed = true
	s.mu.Lock()
	if s.entries[userID] == e {
		delete(s.entries, userID)
	}
	s.mu.Unlock()
	return e.value.Clone(), nil
}

// Remove deletes the user's session. Removing a missing session is a no-op.
// It reports whether a session existed.
func (s *Store[T]) Remove(userID int64) bool {
	s.mu.Lock()
	e, ok := s.entries[userID]
	delete(s.entries, userID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existed := !e.removed
	e.removed = true
	return existed
}

// Len reports the number of active sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
