package forkjoin

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
)

// Scheduler orchestrates a pool of workers, one per selected CPU, routing
// enqueue and starvation events between them to balance load.
//
// Instances must be created via [New], which spawns and synchronizes the
// worker pool before returning. [Scheduler.Close] or [Scheduler.Shutdown]
// should be called when the scheduler is no longer needed.
type Scheduler struct {
	workers []*Worker

	// mu guards starving; queue and wake mutexes are leaves beneath it.
	mu       sync.Mutex
	starving []*Worker

	wg       sync.WaitGroup
	stopOnce sync.Once

	log     *schedulerLogger
	metrics *schedulerMetrics
}

// New creates a scheduler, spawning one pinned worker per schedulable CPU
// (the intersection of the configured CPU set with the process's affinity
// mask), and blocks until every worker is running.
//
// Returns [ErrNoSchedulableCPUs] when the intersection is empty.
func New(options ...Option) (*Scheduler, error) {
	cfg, err := resolveSchedulerOptions(options)
	if err != nil {
		return nil, err
	}

	available, err := processCPUs()
	if err != nil {
		return nil, err
	}

	x := &Scheduler{
		log: newSchedulerLogger(cfg.logger),
	}
	if cfg.metricsEnabled {
		x.metrics = new(schedulerMetrics)
	}

	cpus := available
	if cfg.cpus != nil {
		cpus = intersectCPUs(cfg.cpus, available)
		if len(cpus) != 0 && len(cpus) < len(cfg.cpus) {
			// coalesce with what we have, and warn
			x.log.affinityDenied(len(cfg.cpus), len(cpus))
		}
	}
	if len(cpus) == 0 {
		return nil, ErrNoSchedulableCPUs
	}

	startup := NewSyncCounter(len(cpus))

	for index, cpu := range cpus {
		worker := newWorker(index, cpu, cfg.queueCapacity, x.log, x.metrics)
		worker.onEnqueued = x.onTaskEnqueued
		worker.onStarving = x.onWorkerStarving
		worker.onReady = func(*Worker) { x.onWorkerReady(startup) }
		x.workers = append(x.workers, worker)
	}

	for _, worker := range x.workers {
		x.wg.Add(1)
		go func() {
			defer x.wg.Done()
			worker.Start()
		}()
	}

	// without this, external callers could attempt to spawn tasks on workers
	// that have not had the opportunity to initialize
	startup.Wait()

	x.log.initialized(len(cpus))

	return x, nil
}

// ExecutionContext returns the execution context of the worker bound to the
// calling goroutine, if the caller is a worker, and of a randomly selected
// worker otherwise. Foreign goroutines spread inbound work across the pool;
// worker goroutines keep work local, preserving cache.
//
// Returns nil if no worker is running (the scheduler is closed).
func (x *Scheduler) ExecutionContext() *ExecutionContext {
	if worker := x.callingWorker(); worker != nil {
		if execCtx := worker.ExecutionContext(); execCtx != nil {
			return execCtx
		}
	}

	offset := rand.IntN(len(x.workers))
	for i := range x.workers {
		if execCtx := x.workers[(offset+i)%len(x.workers)].ExecutionContext(); execCtx != nil {
			return execCtx
		}
	}

	return nil
}

// Detach schedules a root-level fire-and-forget task on this scheduler. See
// [ExecutionContext.DetachTask]. A panic will occur if the scheduler is
// closed.
func (x *Scheduler) Detach(fn TaskFunc) {
	execCtx := x.ExecutionContext()
	if execCtx == nil {
		panic(ErrSchedulerClosed)
	}
	execCtx.DetachTask(fn)
}

// Emplace constructs a task that will run once its dependencies complete.
//
// Called from a worker goroutine (i.e. from within a payload), this stages
// the task on the calling worker's context, exactly like
// [ExecutionContext.EmplaceTask]. Called from any other goroutine, the task
// is constructed and its scheduling attempted immediately, dispatching onto a
// randomly selected worker; there is no pending set to defer to.
func (x *Scheduler) Emplace(dependencies TaskList, fn TaskFunc) *Task {
	if worker := x.callingWorker(); worker != nil {
		if execCtx := worker.ExecutionContext(); execCtx != nil {
			return execCtx.EmplaceTask(dependencies, fn)
		}
	}

	task := newTask()
	task.construct(dependencies, fn)

	if task.ScheduleConditional() {
		worker := x.randomRunningWorker()
		if worker == nil {
			panic(ErrSchedulerClosed)
		}
		worker.EnqueueTask(task)
	}

	return task
}

// EmplaceContinuation is [Scheduler.Emplace], additionally earmarking the
// task as a continuation of the calling worker's current execution, see
// [ExecutionContext.EmplaceTaskContinuation]. Called from a goroutine that is
// not a worker there is no current execution to continue, and it behaves
// exactly like Emplace.
func (x *Scheduler) EmplaceContinuation(dependencies TaskList, fn TaskFunc) *Task {
	if worker := x.callingWorker(); worker != nil {
		if execCtx := worker.ExecutionContext(); execCtx != nil {
			return execCtx.EmplaceTaskContinuation(dependencies, fn)
		}
	}

	return x.Emplace(dependencies, fn)
}

// Metrics returns a snapshot of the scheduler's counters. The zero value,
// unless enabled via [WithMetrics].
func (x *Scheduler) Metrics() Metrics {
	return x.metrics.snapshot()
}

// Workers returns the number of workers owned by this scheduler.
func (x *Scheduler) Workers() int {
	return len(x.workers)
}

// Shutdown stops every worker, then blocks until their loops exit, or ctx is
// done. In-flight executions complete; queued tasks that never started are
// abandoned. Idempotent.
func (x *Scheduler) Shutdown(ctx context.Context) error {
	x.stop()

	done := make(chan struct{})
	go func() {
		x.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every worker and blocks until their loops exit. Idempotent.
func (x *Scheduler) Close() error {
	x.stop()
	x.wg.Wait()
	return nil
}

func (x *Scheduler) stop() {
	x.stopOnce.Do(func() {
		x.log.closed()
		for _, worker := range x.workers {
			worker.Stop()
		}
		defaultScheduler.CompareAndSwap(x, nil)
	})
}

// onTaskEnqueued fires whenever a task is enqueued on sender. It attempts to
// hand one of sender's tasks to a starving worker.
func (x *Scheduler) onTaskEnqueued(sender *Worker) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.starving) == 0 {
		return
	}

	starving := x.starving[len(x.starving)-1]

	if task := sender.DequeueTask(); task != nil {
		starving.enqueue(task)
		x.starving = x.starving[:len(x.starving)-1]
		x.metrics.incStolen()
		x.log.taskTransferred(sender.index, starving.index)
	}
}

// onWorkerStarving fires whenever sender runs out of tasks, before it sleeps.
// It attempts to steal a task from another worker; failing that, sender is
// parked on the starving list until a future enqueue nudges it.
//
// The scan starts at a random offset, so no worker is deterministically
// first; a fixed order could permanently starve workers late in the scan.
func (x *Scheduler) onWorkerStarving(sender *Worker) {
	x.metrics.incStarvation()
	x.log.workerStarving(sender.index)

	x.mu.Lock()
	defer x.mu.Unlock()

	offset := rand.IntN(len(x.workers))
	for i := range x.workers {
		worker := x.workers[(offset+i)%len(x.workers)]
		if worker == sender {
			continue
		}
		if task := worker.DequeueTask(); task != nil {
			sender.enqueue(task)
			x.metrics.incStolen()
			x.log.taskTransferred(worker.index, sender.index)
			return
		}
	}

	if !slices.Contains(x.starving, sender) {
		x.starving = append(x.starving, sender)
	}
}

// onWorkerReady fires once per worker, before it enters its loop. Workers
// block here until the whole pool is ready, synchronizing startup.
func (x *Scheduler) onWorkerReady(startup *SyncCounter) {
	startup.Signal(true)
}

// callingWorker returns the worker whose loop is running on the calling
// goroutine, or nil.
func (x *Scheduler) callingWorker() *Worker {
	gid := getGoroutineID()
	for _, worker := range x.workers {
		if worker.gid.Load() == gid {
			return worker
		}
	}
	return nil
}

func (x *Scheduler) randomRunningWorker() *Worker {
	offset := rand.IntN(len(x.workers))
	for i := range x.workers {
		if worker := x.workers[(offset+i)%len(x.workers)]; worker.IsRunning() {
			return worker
		}
	}
	return nil
}

func intersectCPUs(requested, available []int) []int {
	cpus := make([]int, 0, len(requested))
	for _, cpu := range requested {
		if slices.Contains(available, cpu) && !slices.Contains(cpus, cpu) {
			cpus = append(cpus, cpu)
		}
	}
	slices.Sort(cpus)
	return cpus
}
