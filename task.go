package forkjoin

import (
	"sync/atomic"
)

type (
	// TaskFunc is the payload of a [Task]. It receives the execution context
	// of the worker running it, which may be used to spawn child tasks,
	// declare continuations, or yield/reschedule the current task.
	//
	// Payloads are expected to perform small, non-blocking computations, and
	// must not panic; a panicking payload unwinds its worker, and successor
	// bookkeeping only occurs on normal return.
	TaskFunc func(ctx *ExecutionContext)

	// TaskList is a list of tasks, e.g. dependencies or successors.
	TaskList []*Task

	// Task represents the atomic unit of a parallel computation, with a
	// payload, a dependency count, and a list of successor tasks.
	//
	// Tasks are created via an [ExecutionContext] or [Scheduler], which
	// manage their scheduling. Predecessors hold their successors, and the
	// garbage collector performs the shared-ownership arithmetic.
	//
	// A task's dependency count includes one additional "construction"
	// dependency, released by the first ScheduleConditional call, preventing
	// execution before setup completes.
	Task struct {
		fn         TaskFunc
		successors TaskList
		deps       atomic.Int64
	}
)

// newTask allocates an unconstructed task.
func newTask() *Task {
	return new(Task)
}

// construct initializes the payload and wires dependencies.
func (x *Task) construct(dependencies TaskList, fn TaskFunc) {
	x.fn = fn
	x.SetDependencies(dependencies)
}

// SetDependencies replaces this task's dependencies, re-arming its dependency
// count to len(dependencies)+1 and registering it as a successor on each
// dependency.
//
// It may only be called while the dependency count is zero (i.e. on a newly
// allocated task during construction, or once the task has become ready, e.g.
// mid-execution for a reschedule), and only
// with dependencies that have not yet been scheduled, as registration mutates
// their successor lists without synchronization. A panic will occur if the
// count is non-zero, or if dependencies contains the receiver.
func (x *Task) SetDependencies(dependencies TaskList) {
	if x.deps.Load() != 0 {
		panic(`forkjoin: task has outstanding dependencies`)
	}

	// the additional count defers readiness until ScheduleConditional
	x.deps.Store(int64(len(dependencies)) + 1)

	for _, dependency := range dependencies {
		if dependency == x {
			panic(`forkjoin: task cannot depend on itself`)
		}
		dependency.successors = append(dependency.successors, x)
	}
}

// ScheduleConditional attempts to schedule this task, by decrementing its
// dependency count by one. It returns true if and only if the task just
// became ready (the pre-decrement count was one). For any given arming of the
// count, exactly one of any concurrent callers will observe true.
//
// Decrementing below zero is over-scheduling, and panics.
func (x *Task) ScheduleConditional() bool {
	previous := x.deps.Add(-1) + 1
	if previous < 1 {
		panic(`forkjoin: task was over-scheduled`)
	}
	return previous == 1
}

// Execute invokes the payload. It must be preceded by a true return from
// ScheduleConditional, a contract normally upheld by the worker loop.
func (x *Task) Execute(ctx *ExecutionContext) {
	if x.fn != nil {
		x.fn(ctx)
	}
}

// ContinueWith transfers this task's successors to task, e.g. so a
// continuation inherits them. It must be called before this task's successors
// have been notified (i.e. before or during its execution). Transferring to
// the receiver itself is a no-op.
func (x *Task) ContinueWith(task *Task) {
	if task != x {
		x.MoveSuccessors(&task.successors)
	}
}

// MoveSuccessors moves this task's successors into the provided collection,
// clearing them from the receiver.
func (x *Task) MoveSuccessors(successors *TaskList) {
	if len(*successors) == 0 {
		*successors, x.successors = x.successors, nil
	} else {
		*successors = append(*successors, x.successors...)
		x.successors = nil
	}
}

// detachFunc moves the payload out of the task, e.g. into a yield
// continuation.
func (x *Task) detachFunc() TaskFunc {
	fn := x.fn
	x.fn = nil
	return fn
}
