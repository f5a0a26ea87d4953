package forkjoin

import (
	"sync"
	"sync/atomic"
)

// SyncCounter is a count-down latch: an atomic, notifiable counter used to
// synchronize a group of goroutines. The scheduler uses one to synchronize
// worker startup; user code may use it for fork/join barriers.
//
// Example:
//
//	counter := forkjoin.NewSyncCounter(10)
//
//	for i := 0; i < 10; i++ {
//		go func() {
//			// ... some code A ...
//			counter.Signal(true) // synchronization point, blocks
//			// ... given that every goroutine executed A ...
//		}()
//	}
//
//	counter.Wait() // wait for the group to reach the synchronization point
//
// The counter must outlive any goroutine blocked in Wait or Signal.
type SyncCounter struct {
	mu    sync.Mutex
	cond  sync.Cond
	count atomic.Int64
}

// NewSyncCounter creates a new synchronization counter with the given initial
// value.
func NewSyncCounter(count int) *SyncCounter {
	x := &SyncCounter{}
	x.cond.L = &x.mu
	x.count.Store(int64(count))
	return x
}

// Signal reduces the counter by one. The signaller that drops the counter to
// zero wakes every waiting goroutine; any other signaller blocks until the
// counter reaches zero, if wait is true. Signalling a counter already at zero
// is a contract violation, and panics.
func (x *SyncCounter) Signal(wait bool) {
	switch count := x.count.Add(-1); {
	case count == 0:
		// waiters re-check the count under the mutex, so the broadcast must
		// be ordered after any in-progress check-then-wait
		x.mu.Lock()
		x.cond.Broadcast()
		x.mu.Unlock()
	case count < 0:
		panic(`forkjoin: sync counter signalled below zero`)
	default:
		if wait {
			x.Wait()
		}
	}
}

// Wait blocks until the counter drops to zero.
func (x *SyncCounter) Wait() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for x.count.Load() != 0 {
		x.cond.Wait()
	}
}

// Reset stores a new counter value. It must only be called while no goroutine
// is blocked in Wait or Signal.
func (x *SyncCounter) Reset(count int) {
	x.count.Store(int64(count))
}
