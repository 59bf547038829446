// Package distlock provides non-blocking named locks with in-process and
// Redis-backed implementations. Lock acquisition never waits: callers that
// lose the race are expected to fail fast.
package distlock

import (
	"context"
	"sync"
)

// Lock is a single named lock instance.
// Acquire must not block; it reports false immediately when the lock is held.
type Lock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Locker hands out locks by key. Implementations must return locks that
// contend with every other lock created for the same key.
type Locker interface {
	Lock(key string) Lock
}

// LocalLocker manages in-process named locks. Sufficient for single-host
// deployments; use RedisLocker when multiple instances share accounts.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates an in-process lock registry.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Lock returns a lock handle for the given key.
func (r *LocalLocker) Lock(key string) Lock {
	return &localLock{registry: r, key: key}
}

type localLock struct {
	registry *LocalLocker
	key      string
	owned    bool
}

func (l *localLock) Acquire(_ context.Context) (bool, error) {
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if l.registry.held[l.key] {
		return false, nil
	}
	l.registry.held[l.key] = true
	l.owned = true
	return true, nil
}

func (l *localLock) Release(_ context.Context) error {
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if l.owned {
		delete(l.registry.held, l.key)
		l.owned = false
	}
	return nil
}
