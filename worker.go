package forkjoin

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Worker is a single-threaded task executor: an event loop owning one
// [ExecutionContext] and one [TaskQueue]. The loop sleeps until there is at
// least one task to execute, runs depth-first along continuation chains, and
// returns to its queue only when no ready continuation remains.
//
// Workers are normally owned and started by a [Scheduler], one per selected
// CPU; standalone use is supported for testing and embedding.
type Worker struct {
	queue *TaskQueue

	context atomic.Pointer[ExecutionContext]

	state workerStateMachine

	// gid is the goroutine id of the running loop, 0 otherwise.
	gid atomic.Uint64

	mu   sync.Mutex
	wake sync.Cond

	// cpu this worker is pinned to, or -1. Pinning is best-effort, and may
	// silently fail.
	cpu   int
	index int

	// scheduler event hooks, installed before Start, nil for standalone
	// workers.
	onEnqueued func(*Worker)
	onStarving func(*Worker)
	onReady    func(*Worker)

	log     *schedulerLogger
	metrics *schedulerMetrics
}

// NewWorker creates a new worker with a queue of the given capacity, not
// bound to any CPU. See also [NewTaskQueue].
func NewWorker(queueCapacity int) *Worker {
	return newWorker(0, -1, queueCapacity, nil, nil)
}

func newWorker(index, cpu, queueCapacity int, log *schedulerLogger, metrics *schedulerMetrics) *Worker {
	x := &Worker{
		queue:   NewTaskQueue(queueCapacity),
		cpu:     cpu,
		index:   index,
		log:     log,
		metrics: metrics,
	}
	x.wake.L = &x.mu
	return x
}

// Start runs the worker loop on the calling goroutine, blocking until Stop.
// The goroutine is locked to its OS thread for the duration, and pinned to
// the worker's CPU where supported.
//
// A panic will occur if the worker was already started.
func (x *Worker) Start() {
	if !x.state.TryTransition(WorkerIdle, WorkerRunning) {
		panic(`forkjoin: worker already started`)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if x.cpu >= 0 {
		pinThread(x.cpu)
	}

	x.gid.Store(getGoroutineID())
	defer x.gid.Store(0)

	context := newExecutionContext(x.metrics)
	context.onTaskReady = x.EnqueueTask

	x.context.Store(context)
	defer x.context.Store(nil)

	x.log.workerStarted(x.index, x.cpu)
	defer x.log.workerStopped(x.index)

	if x.onReady != nil {
		x.onReady(x)
	}

	for x.running() {
		task := x.fetchTask()

		// depth-first execution improves cache locality, and avoids touching
		// the queue between continuations
		for task != nil && x.running() {
			task = context.ExecuteTask(task)
		}
	}

	// abandon whatever never started
	x.queue.Clear()

	x.state.Store(WorkerStopped)
}

// Stop requests loop termination and wakes the worker. Queued tasks that were
// not executed are abandoned; an in-flight execution completes. Stop is
// idempotent, and a no-op on a stopped worker.
func (x *Worker) Stop() {
	if x.state.TryTransition(WorkerIdle, WorkerStopped) {
		return
	}
	if x.state.TryTransition(WorkerRunning, WorkerStopping) {
		x.mu.Lock()
		x.wake.Broadcast()
		x.mu.Unlock()
	}
}

// State returns the worker's lifecycle state.
func (x *Worker) State() WorkerState {
	return x.state.Load()
}

// IsRunning reports whether the worker loop is running.
func (x *Worker) IsRunning() bool {
	return x.running()
}

// ExecutionContext returns the execution context associated with this worker,
// or nil if the loop is not running.
func (x *Worker) ExecutionContext() *ExecutionContext {
	return x.context.Load()
}

// EnqueueTask pushes a ready task onto the back of this worker's queue, wakes
// the worker, and fires the enqueued hook (giving the scheduler a chance to
// re-balance onto a starving worker).
func (x *Worker) EnqueueTask(task *Task) {
	x.enqueue(task)

	x.metrics.incEnqueued()

	if x.onEnqueued != nil {
		x.onEnqueued(x)
	}
}

// DequeueTask pops a task from the front of this worker's queue, or nil. It
// is how external stealers (the scheduler) take work from this worker.
func (x *Worker) DequeueTask() *Task {
	return x.queue.PopFront()
}

// QueueLen returns the number of tasks currently queued on this worker.
func (x *Worker) QueueLen() int {
	return x.queue.Len()
}

// enqueue pushes and wakes, without firing the enqueued hook. Used by the
// scheduler for steal transfers, which must not recurse into balancing.
func (x *Worker) enqueue(task *Task) {
	x.queue.PushBack(task)

	x.mu.Lock()
	x.wake.Broadcast()
	x.mu.Unlock()
}

func (x *Worker) running() bool {
	return x.state.Load() == WorkerRunning
}

// fetchTask returns the next task from the back of the queue, parking the
// goroutine while the queue is empty and the worker is running. Returns nil
// once the worker is stopping. The starving hook fires, outside the wake
// mutex, each time the queue is observed empty, giving the scheduler a chance
// to steal work from other workers before this one sleeps.
func (x *Worker) fetchTask() *Task {
	for {
		if !x.running() {
			return nil
		}

		if task := x.queue.PopBack(); task != nil {
			return task
		}

		if x.onStarving != nil {
			x.onStarving(x)
		}

		x.mu.Lock()

		// re-check under the wake mutex: an enqueue between the pop above
		// and this point broadcasts only after acquiring it
		if !x.running() {
			x.mu.Unlock()
			return nil
		}
		if task := x.queue.PopBack(); task != nil {
			x.mu.Unlock()
			return task
		}

		x.wake.Wait()
		x.mu.Unlock()
	}
}

// getGoroutineID returns the current goroutine's ID, by parsing the header of
// a stack dump. Used to resolve the worker bound to the calling goroutine,
// standing in for thread-local storage.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
