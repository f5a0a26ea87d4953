package forkjoin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readyRecorder collects tasks published via the task-ready callback.
type readyRecorder struct {
	tasks TaskList
}

func newRecordedContext() (*ExecutionContext, *readyRecorder) {
	recorder := &readyRecorder{}
	context := newExecutionContext(nil)
	context.onTaskReady = func(task *Task) { recorder.tasks = append(recorder.tasks, task) }
	return context, recorder
}

func (x *readyRecorder) contains(task *Task) bool {
	for _, ready := range x.tasks {
		if ready == task {
			return true
		}
	}
	return false
}

func TestExecutionContext_DetachTask_firesReadyCallback(t *testing.T) {
	context, recorder := newRecordedContext()

	context.DetachTask(func(*ExecutionContext) {})

	require.Len(t, recorder.tasks, 1)
	assert.EqualValues(t, 1, context.Pool().Allocated())
}

func TestExecutionContext_ExecuteTask_zeroDependencyNoPayload(t *testing.T) {
	// boundary: completes immediately, no successors fire
	context, recorder := newRecordedContext()

	task := context.Pool().CreateTask(nil, nil)
	require.True(t, task.ScheduleConditional())

	next := context.ExecuteTask(task)

	assert.Nil(t, next)
	assert.Empty(t, recorder.tasks)
}

func TestExecutionContext_ExecuteTask_publishesSpawnedTasks(t *testing.T) {
	context, recorder := newRecordedContext()

	root := context.Pool().CreateTask(nil, func(ctx *ExecutionContext) {
		ctx.EmplaceTask(nil, func(*ExecutionContext) {})
		ctx.EmplaceTask(nil, func(*ExecutionContext) {})
	})
	require.True(t, root.ScheduleConditional())

	next := context.ExecuteTask(root)

	// neither spawned task was earmarked: both are published, none kept
	assert.Nil(t, next)
	assert.Len(t, recorder.tasks, 2)
}

func TestExecutionContext_ExecuteTask_prefersFirstReadyContinuation(t *testing.T) {
	context, recorder := newRecordedContext()

	var c1, c2 *Task
	root := context.Pool().CreateTask(nil, func(ctx *ExecutionContext) {
		c1 = ctx.EmplaceTaskContinuation(nil, func(*ExecutionContext) {})
		c2 = ctx.EmplaceTaskContinuation(nil, func(*ExecutionContext) {})
	})
	require.True(t, root.ScheduleConditional())

	next := context.ExecuteTask(root)

	// the first ready continuation is returned, not published; the second is
	// published for the scheduler to place
	assert.Same(t, c1, next)
	require.Len(t, recorder.tasks, 1)
	assert.Same(t, c2, recorder.tasks[0])
}

func TestExecutionContext_ExecuteTask_dependentChildNotScheduled(t *testing.T) {
	context, recorder := newRecordedContext()

	var gate, child *Task
	root := context.Pool().CreateTask(nil, func(ctx *ExecutionContext) {
		gate = ctx.EmplaceTask(nil, func(*ExecutionContext) {})
		child = ctx.EmplaceTask(TaskList{gate}, func(*ExecutionContext) {})
	})
	require.True(t, root.ScheduleConditional())

	next := context.ExecuteTask(root)
	require.Nil(t, next)

	// only the gate is ready; the child still holds a dependency on it
	require.Len(t, recorder.tasks, 1)
	require.Same(t, gate, recorder.tasks[0])

	// executing the gate releases the child
	recorder.tasks = nil
	next = context.ExecuteTask(gate)
	require.Nil(t, next)
	require.Len(t, recorder.tasks, 1)
	assert.Same(t, child, recorder.tasks[0])
}

func TestExecutionContext_ExecuteTask_notifiesSuccessors(t *testing.T) {
	context, recorder := newRecordedContext()

	root := context.Pool().CreateTask(nil, func(*ExecutionContext) {})
	successor := context.Pool().CreateTask(TaskList{root}, nil)
	require.False(t, successor.ScheduleConditional()) // release the construction guard

	require.True(t, root.ScheduleConditional())
	next := context.ExecuteTask(root)

	assert.Nil(t, next)
	require.Len(t, recorder.tasks, 1)
	assert.Same(t, successor, recorder.tasks[0])
}

func TestExecutionContext_YieldTask_inheritsSuccessors(t *testing.T) {
	context, recorder := newRecordedContext()

	executions := 0
	root := context.Pool().CreateTask(nil, func(ctx *ExecutionContext) {
		executions++
		if executions < 2 {
			ctx.YieldTask()
		}
	})

	successor := context.Pool().CreateTask(TaskList{root}, nil)
	require.False(t, successor.ScheduleConditional())

	require.True(t, root.ScheduleConditional())
	next := context.ExecuteTask(root)

	// the yield continuation runs next, on this worker; the successor must
	// not have been notified by the first execution
	require.NotNil(t, next)
	require.NotSame(t, root, next)
	assert.False(t, recorder.contains(successor))

	next = context.ExecuteTask(next)

	// the chain completed: the successor fires now
	assert.Nil(t, next)
	assert.True(t, recorder.contains(successor))
	assert.Equal(t, 2, executions)
}

func TestExecutionContext_RescheduleTask_runsAgainAsFreshTask(t *testing.T) {
	context, recorder := newRecordedContext()

	executions := 0
	task := context.Pool().CreateTask(nil, func(ctx *ExecutionContext) {
		executions++
		if executions < 2 {
			ctx.RescheduleTask()
		}
	})

	require.True(t, task.ScheduleConditional())
	next := context.ExecuteTask(task)

	// a reschedule is not a continuation: the task is published, not kept
	require.Nil(t, next)
	require.Len(t, recorder.tasks, 1)
	require.Same(t, task, recorder.tasks[0])

	next = context.ExecuteTask(task)
	assert.Nil(t, next)
	assert.Equal(t, 2, executions)
}

func TestExecutionContext_secondConsumerOfReschedulableSlotPanics(t *testing.T) {
	context, _ := newRecordedContext()

	task := context.Pool().CreateTask(nil, func(ctx *ExecutionContext) {
		ctx.YieldTask()
		defer func() {
			if recover() == nil {
				t.Error("expected panic on second consumer")
			}
		}()
		ctx.RescheduleTask()
	})
	require.True(t, task.ScheduleConditional())

	_ = context.ExecuteTask(task)
}

func TestExecutionContext_metricsWiring(t *testing.T) {
	metrics := new(schedulerMetrics)
	context := newExecutionContext(metrics)
	context.onTaskReady = func(*Task) {}

	executions := 0
	task := context.Pool().CreateTask(nil, func(ctx *ExecutionContext) {
		executions++
		if executions == 1 {
			ctx.YieldTask()
		}
	})
	require.True(t, task.ScheduleConditional())

	next := context.ExecuteTask(task)
	require.NotNil(t, next)
	require.Nil(t, context.ExecuteTask(next))

	snapshot := metrics.snapshot()
	assert.EqualValues(t, 2, snapshot.TasksExecuted)
	assert.EqualValues(t, 1, snapshot.TaskYields)
	assert.EqualValues(t, 1, snapshot.ContinuationsInline)
}
