// Package caching provides application-wide caching and related utilities.
package caching

import "sync"

// WarmingLock is a keyed try-lock. It keeps a second metadata load or retry
// loop from starting while one is already running.
type WarmingLock struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

func NewWarmingLock() *WarmingLock {
	return &WarmingLock{
		locks: make(map[string]struct{}),
	}
}

// TryLock acquires key without blocking. It reports false if key is held.
func (l *WarmingLock) TryLock(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.locks[key]; exists {
		return false
	}
	l.locks[key] = struct{}{}
	return true
}

// Unlock releases key. Call it with defer from the goroutine that acquired it.
func (l *WarmingLock) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
}

// Held reports whether key is currently locked.
func (l *WarmingLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, exists := l.locks[key]
	return exists
}
