package forkjoin

import (
	"sync/atomic"
)

// WorkerState represents the lifecycle state of a [Worker].
//
// State Machine:
//
//	WorkerIdle (0) → WorkerRunning (1)     [Start()]
//	WorkerIdle (0) → WorkerStopped (3)     [Stop() before Start()]
//	WorkerRunning (1) → WorkerStopping (2) [Stop()]
//	WorkerStopping (2) → WorkerStopped (3) [loop exit]
//	WorkerStopped (3) → (terminal)
//
// Transitions use compare-and-swap, so concurrent Start/Stop calls resolve to
// exactly one winner per transition.
type WorkerState uint32

const (
	// WorkerIdle indicates the worker has been created but not started.
	WorkerIdle WorkerState = iota
	// WorkerRunning indicates the worker loop is executing tasks.
	WorkerRunning
	// WorkerStopping indicates termination has been requested but the loop
	// has not yet exited.
	WorkerStopping
	// WorkerStopped indicates the worker loop has exited. Terminal.
	WorkerStopped
)

// String returns a human-readable representation of the state.
func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "Idle"
	case WorkerRunning:
		return "Running"
	case WorkerStopping:
		return "Stopping"
	case WorkerStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// workerStateMachine is a lock-free state holder for worker lifecycle
// transitions. No transition validation beyond CAS; using Store for a
// reversible state is a bug.
type workerStateMachine struct {
	v atomic.Uint32
}

func (x *workerStateMachine) Load() WorkerState {
	return WorkerState(x.v.Load())
}

func (x *workerStateMachine) Store(state WorkerState) {
	x.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another,
// reporting success.
func (x *workerStateMachine) TryTransition(from, to WorkerState) bool {
	return x.v.CompareAndSwap(uint32(from), uint32(to))
}
