// Package keylock provides per-key mutual exclusion so work on one key serializes
// while other keys proceed in parallel.
package keylock

import "sync"

// Map hands out one mutex per key and forgets it once nobody holds or waits on it.
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty lock map.
func New[K comparable]() *Map[K] {
	return &Map[K]{locks: make(map[K]*entry)}
}

// Lock blocks until key is held and returns its release func.
func (m *Map[K]) Lock(key K) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Len reports how many keys are currently tracked.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
