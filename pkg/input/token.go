// Package input dispatches clicks and movement keys to the OS and provides
// the synchronization primitives the frame loop relies on: the click
// exclusivity token and a bounded click worker pool.
package input

import (
	"sync"
	"sync/atomic"
)

// Token is the click exclusivity primitive: at most one in-flight click
// action holds it at a time. The frame loop acquires it before dispatching a
// delayed click; the click task releases it on completion.
type Token struct {
	mu   sync.Mutex
	held atomic.Bool
}

// TryAcquire takes the token without blocking. False means a click is
// already in flight.
func (t *Token) TryAcquire() bool {
	if !t.mu.TryLock() {
		return false
	}
	t.held.Store(true)
	return true
}

// Release returns the token. Must only be called by the holder.
func (t *Token) Release() {
	t.held.Store(false)
	t.mu.Unlock()
}

// Held reports whether the token is currently taken.
func (t *Token) Held() bool {
	return t.held.Load()
}
