package forkjoin

import (
	"sync/atomic"
)

// TaskPool handles allocation and construction of tasks. Each
// [ExecutionContext] owns its own pool, so allocations on the hot path come
// from distinct pools.
//
// Tasks are individually heap allocated, and reclaimed by the garbage
// collector once no predecessor or handle refers to them; the pool exists to
// centralize construction and account for allocations.
type TaskPool struct {
	allocated atomic.Int64
}

// CreateTask allocates and constructs a new task with the given dependencies
// and payload. See [Task.SetDependencies] for the constraints on
// dependencies.
func (x *TaskPool) CreateTask(dependencies TaskList, fn TaskFunc) *Task {
	task := newTask()
	task.construct(dependencies, fn)
	x.allocated.Add(1)
	return task
}

// Allocated returns the total number of tasks created by this pool.
func (x *TaskPool) Allocated() int64 {
	return x.allocated.Load()
}
