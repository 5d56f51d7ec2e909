// Package locks provides the in-process serialization primitives used
// around generation: a single global gate and a registry of per-key
// mutexes. Both respect context cancellation while waiting.
package locks

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// GlobalGenerationKey names the process-wide gate held for the full
// duration of any media generation.
const GlobalGenerationKey = "global:generation"

// TimeoutError reports a lock wait that was abandoned.
type TimeoutError struct {
	Key string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("lock %q not acquired: %v", e.Key, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Gate is a context-aware single-holder lock.
type Gate struct {
	key string
	sem *semaphore.Weighted
}

// NewGate creates a named gate.
func NewGate(key string) *Gate {
	return &Gate{key: key, sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the gate is held or the context ends.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return &TimeoutError{Key: g.key, Err: err}
	}
	return nil
}

// Release frees the gate for the next waiter.
func (g *Gate) Release() {
	g.sem.Release(1)
}

type keyedEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// KeyedMutex serializes work per key. Entries are created on demand and
// removed once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

// NewKeyedMutex creates an empty registry.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Acquire blocks until the key's lock is held or the context ends. The
// returned release function must be called exactly once.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (release func(), err error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyedEntry{sem: semaphore.NewWeighted(1)}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		m.unref(key, entry)
		return nil, &TimeoutError{Key: key, Err: err}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.sem.Release(1)
			m.unref(key, entry)
		})
	}, nil
}

func (m *KeyedMutex) unref(key string, entry *keyedEntry) {
	m.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// Len reports the number of live entries.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
