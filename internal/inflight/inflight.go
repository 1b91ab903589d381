// Package inflight rejects a second submission of an action while the first
// one is still waiting for its response.
package inflight

import (
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrInFlight = errors.New("request already in flight")

type Guard struct {
	mu    sync.Mutex
	slots map[string]*semaphore.Weighted
}

func NewGuard() *Guard {
	return &Guard{slots: make(map[string]*semaphore.Weighted)}
}

// Acquire claims key without blocking. The returned release must be called
// once the response or failure has been handled.
func (g *Guard) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	slot, ok := g.slots[key]
	if !ok {
		slot = semaphore.NewWeighted(1)
		g.slots[key] = slot
	}
	g.mu.Unlock()

	if !slot.TryAcquire(1) {
		return nil, ErrInFlight
	}

	var once sync.Once
	return func() { once.Do(func() { slot.Release(1) }) }, nil
}

// Busy reports whether key is currently claimed, for disabling the control
// that triggers it.
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	slot, ok := g.slots[key]
	g.mu.Unlock()
	if !ok {
		return false
	}
	if slot.TryAcquire(1) {
		slot.Release(1)
		return false
	}
	return true
}
