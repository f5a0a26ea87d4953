// Package forkjoin provides a fork/join task scheduler for Go, built around
// CPU-pinned workers, per-worker task deques, dependency-tracked tasks, and
// cross-worker work stealing.
//
// # Architecture
//
// A [Scheduler] owns one [Worker] per selected CPU. Each worker runs a
// fetch→execute loop on a goroutine locked to its OS thread, owns a bounded
// [TaskQueue] of ready tasks, and an [ExecutionContext] holding the mutable
// state of the task currently executing: tasks it spawned, continuations it
// earmarked, and its reschedule slot.
//
// A [Task] couples a payload with a dependency count and a list of
// successors. A task becomes ready when its count reaches zero; completing a
// task decrements each successor's count. The dependency graph must be
// acyclic; predecessors hold their successors, and the garbage collector
// performs the shared-ownership arithmetic.
//
// # Execution Model
//
// Workers execute depth-first: a payload may spawn child tasks
// ([ExecutionContext.EmplaceTask]), earmark continuations
// ([ExecutionContext.EmplaceTaskContinuation]), or extend itself
// ([ExecutionContext.YieldTask], [ExecutionContext.RescheduleTask]). The
// first continuation to become ready is executed directly by the same
// worker, bypassing its queue; everything else ready is published to the
// scheduler, which hands work to starving workers.
//
// Owners pop their queues LIFO (locality); stealers pop FIFO (spread). A
// worker that runs dry attempts a steal before sleeping, and parks on the
// scheduler's starving list when none succeeds; a later enqueue anywhere in
// the pool nudges it awake.
//
// # Thread Safety
//
//   - [Scheduler.Detach] and [Scheduler.Emplace] are safe to call from any
//     goroutine; foreign goroutines are dispatched onto a random worker.
//   - [ExecutionContext] methods (other than DetachTask) may only be called
//     from the payload executing on that context.
//   - [Worker.EnqueueTask] and [Worker.DequeueTask] are safe from any
//     goroutine; PushBack/PopBack on a [TaskQueue] are owner-only.
//
// Contract violations (over-scheduling, queue overflow, yielding twice,
// self-dependencies) panic; they are programming errors, not runtime
// failures.
//
// # Usage
//
//	scheduler, err := forkjoin.New(
//		forkjoin.WithQueueCapacity(1024),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer scheduler.Close()
//
//	done := make(chan struct{})
//	scheduler.Detach(func(ctx *forkjoin.ExecutionContext) {
//		a := ctx.EmplaceTask(nil, work)
//		b := ctx.EmplaceTask(nil, work)
//		ctx.EmplaceTaskContinuation(forkjoin.TaskList{a, b},
//			func(*forkjoin.ExecutionContext) { close(done) })
//	})
//	<-done
//
// # Shutdown
//
// [Scheduler.Close] (or [Scheduler.Shutdown], with a deadline) stops every
// worker and joins their goroutines. In-flight payloads complete; queued
// tasks that never started are abandoned. There is no per-task cancellation.
package forkjoin
