package forkjoin

// ExecutionContext is the per-worker mutable state used to execute, spawn and
// continue tasks. Each worker owns exactly one, created when its loop starts.
//
// With the exception of DetachTask, which is safe to call from any goroutine,
// methods on ExecutionContext may only be called from the owning worker's
// goroutine, from within a payload it is executing. Payloads receive their
// context as an argument; foreign goroutines must route through a
// [Scheduler], which dispatches onto a worker for them.
type ExecutionContext struct {
	pool *TaskPool

	// reschedulable holds the currently executing task, until consumed by
	// the first of YieldTask or RescheduleTask.
	reschedulable *Task

	// pending tasks spawned during the current execution, awaiting a
	// scheduling attempt.
	pending TaskList

	// continuations is the subset of pending earmarked to run next on this
	// worker.
	continuations TaskList

	// scratch buffers successor drains between executions.
	scratch TaskList

	// onTaskReady is invoked synchronously whenever a task becomes ready for
	// execution, excepting the continuation returned by ExecuteTask. Set at
	// most once, by the owning worker, before the context is published. The
	// callback must be non-blocking and re-entrant safe.
	onTaskReady func(task *Task)

	metrics *schedulerMetrics
}

// newExecutionContext creates a context with its own task pool.
func newExecutionContext(metrics *schedulerMetrics) *ExecutionContext {
	return &ExecutionContext{
		pool:    new(TaskPool),
		metrics: metrics,
	}
}

// Pool returns the task pool private to this context.
func (x *ExecutionContext) Pool() *TaskPool {
	return x.pool
}

// DetachTask creates a task with no dependencies and no successors, schedules
// it unconditionally, and fires the task-ready callback. Unlike the other
// methods on ExecutionContext, it is safe to call from any goroutine.
func (x *ExecutionContext) DetachTask(fn TaskFunc) {
	task := x.pool.CreateTask(nil, fn)

	task.ScheduleConditional() // no dependencies: always ready

	x.metrics.incDetached()

	x.notifyTaskReady(task)
}

// EmplaceTask constructs a task that will run once its dependencies complete,
// and stages it for scheduling at the end of the current execution step.
func (x *ExecutionContext) EmplaceTask(dependencies TaskList, fn TaskFunc) *Task {
	task := x.pool.CreateTask(dependencies, fn)

	x.pending = append(x.pending, task)

	return task
}

// EmplaceTaskContinuation is EmplaceTask, additionally earmarking the task as
// a continuation: if it is ready at the end of the current execution step,
// the worker prefers to execute it directly, bypassing its queue.
func (x *ExecutionContext) EmplaceTaskContinuation(dependencies TaskList, fn TaskFunc) *Task {
	task := x.pool.CreateTask(dependencies, fn)

	x.continuations = append(x.continuations, task)
	x.pending = append(x.pending, task)

	return task
}

// RescheduleTask arranges for the currently executing task to be scheduled
// again, as a fresh task, once the given dependencies complete. The task's
// original successors are notified at the end of the current execution, as
// usual.
//
// A task may be rescheduled or yielded at most once per execution; a second
// consumer panics.
func (x *ExecutionContext) RescheduleTask(dependencies ...*Task) {
	task := x.consumeReschedulable()

	// the current task's count reached zero to execute: safe to re-arm
	task.SetDependencies(dependencies)

	x.pending = append(x.pending, task)

	x.metrics.incReschedules()
}

// YieldTask arranges for the currently executing task to be extended as a
// continuation of itself: its payload is detached into a new task that
// depends on the given dependencies and inherits the original task's
// successors, so they are only notified once the continuation chain finally
// completes. The continuation is preferred as the worker's next step.
//
// A task may be rescheduled or yielded at most once per execution; a second
// consumer panics.
func (x *ExecutionContext) YieldTask(dependencies ...*Task) {
	task := x.consumeReschedulable()

	continuation := x.pool.CreateTask(dependencies, task.detachFunc())

	task.ContinueWith(continuation)

	x.continuations = append(x.continuations, continuation)
	x.pending = append(x.pending, continuation)

	x.metrics.incYields()
}

// ExecuteTask executes the provided task, then schedules anything it spawned,
// returning the next task this worker should execute directly, or nil.
//
// The returned continuation, if any, is the first earmarked continuation that
// became ready; it is not passed to the task-ready callback. Every other task
// that became ready is published via the callback.
func (x *ExecutionContext) ExecuteTask(task *Task) (next *Task) {
	// pending, continuations and the reschedulable slot are consumed by the
	// previous execution step, and empty at entry

	x.reschedulable = task

	task.Execute(x)

	x.reschedulable = nil

	// attempt to schedule everything spawned during execution, keeping the
	// first ready continuation for this worker
	for _, pending := range x.pending {
		if !pending.ScheduleConditional() {
			continue
		}
		if next == nil && x.isContinuation(pending) {
			next = pending
		} else {
			x.notifyTaskReady(pending)
		}
	}

	// notify the executed task's successors (none, if transferred by a
	// yield); this decrement is what orders predecessor completion before
	// successor execution
	task.MoveSuccessors(&x.scratch)
	for _, successor := range x.scratch {
		if successor.ScheduleConditional() {
			x.notifyTaskReady(successor)
		}
	}

	if next != nil {
		x.metrics.incContinuationsInline()
	}
	x.metrics.incExecuted()

	// release task references promptly
	clear(x.pending)
	clear(x.continuations)
	clear(x.scratch)
	x.pending = x.pending[:0]
	x.continuations = x.continuations[:0]
	x.scratch = x.scratch[:0]

	return next
}

func (x *ExecutionContext) consumeReschedulable() *Task {
	task := x.reschedulable
	if task == nil {
		panic(`forkjoin: task already yielded or rescheduled`)
	}
	x.reschedulable = nil
	return task
}

// isContinuation reports whether task was earmarked via
// EmplaceTaskContinuation or YieldTask. Linear scan: the collection is tiny,
// and always a subset of pending.
func (x *ExecutionContext) isContinuation(task *Task) bool {
	for _, continuation := range x.continuations {
		if continuation == task {
			return true
		}
	}
	return false
}

func (x *ExecutionContext) notifyTaskReady(task *Task) {
	if x.onTaskReady != nil {
		x.onTaskReady(task)
	}
}
