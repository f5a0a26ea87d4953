package forkjoin

import (
	"sync/atomic"
)

// Metrics is a point-in-time snapshot of scheduler counters, see
// [Scheduler.Metrics]. Collection is disabled unless enabled via
// [WithMetrics].
type Metrics struct {
	// TasksExecuted is the number of completed task executions, across all
	// workers. A yielded or rescheduled task counts once per execution.
	TasksExecuted uint64
	// TasksDetached is the number of fire-and-forget tasks created via
	// DetachTask.
	TasksDetached uint64
	// TasksEnqueued is the number of tasks pushed onto worker queues,
	// excluding steal transfers.
	TasksEnqueued uint64
	// TasksStolen is the number of tasks transferred between workers by the
	// scheduler's balancing.
	TasksStolen uint64
	// ContinuationsInline is the number of continuations executed directly
	// by their worker, bypassing the queue and wake path.
	ContinuationsInline uint64
	// TaskYields is the number of YieldTask calls.
	TaskYields uint64
	// TaskReschedules is the number of RescheduleTask calls.
	TaskReschedules uint64
	// StarvationEvents is the number of times a worker observed an empty
	// queue and asked the scheduler for work.
	StarvationEvents uint64
}

// schedulerMetrics is the live, atomic counter set. All methods are
// nil-receiver safe; a nil *schedulerMetrics is how collection is disabled.
type schedulerMetrics struct {
	executed            atomic.Uint64
	detached            atomic.Uint64
	enqueued            atomic.Uint64
	stolen              atomic.Uint64
	continuationsInline atomic.Uint64
	yields              atomic.Uint64
	reschedules         atomic.Uint64
	starvation          atomic.Uint64
}

func (x *schedulerMetrics) snapshot() Metrics {
	if x == nil {
		return Metrics{}
	}
	return Metrics{
		TasksExecuted:       x.executed.Load(),
		TasksDetached:       x.detached.Load(),
		TasksEnqueued:       x.enqueued.Load(),
		TasksStolen:         x.stolen.Load(),
		ContinuationsInline: x.continuationsInline.Load(),
		TaskYields:          x.yields.Load(),
		TaskReschedules:     x.reschedules.Load(),
		StarvationEvents:    x.starvation.Load(),
	}
}

func (x *schedulerMetrics) incExecuted() {
	if x != nil {
		x.executed.Add(1)
	}
}

func (x *schedulerMetrics) incDetached() {
	if x != nil {
		x.detached.Add(1)
	}
}

func (x *schedulerMetrics) incEnqueued() {
	if x != nil {
		x.enqueued.Add(1)
	}
}

func (x *schedulerMetrics) incStolen() {
	if x != nil {
		x.stolen.Add(1)
	}
}

func (x *schedulerMetrics) incContinuationsInline() {
	if x != nil {
		x.continuationsInline.Add(1)
	}
}

func (x *schedulerMetrics) incYields() {
	if x != nil {
		x.yields.Add(1)
	}
}

func (x *schedulerMetrics) incReschedules() {
	if x != nil {
		x.reschedules.Add(1)
	}
}

func (x *schedulerMetrics) incStarvation() {
	if x != nil {
		x.starvation.Add(1)
	}
}
