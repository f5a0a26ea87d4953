// logging.go - logiface integration for the scheduler.
//
// Logging is configured per scheduler, via WithLogger, and disabled by
// default. All methods are nil-receiver safe, so the hot path pays a single
// nil check when logging is disabled. Starvation events, which can fire at
// high frequency on an idle pool, are rate limited per worker.

package forkjoin

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// schedulerLogger wraps the configured logiface logger, adding per-worker
// rate limiting of starvation events.
type schedulerLogger struct {
	logger   *logiface.Logger[logiface.Event]
	starving *catrate.Limiter
}

func newSchedulerLogger(logger *logiface.Logger[logiface.Event]) *schedulerLogger {
	if logger == nil {
		return nil
	}
	return &schedulerLogger{
		logger: logger,
		starving: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
}

func (x *schedulerLogger) initialized(workers int) {
	if x == nil {
		return
	}
	x.logger.Info().
		Int(`workers`, workers).
		Log(`forkjoin: scheduler initialized`)
}

func (x *schedulerLogger) closed() {
	if x == nil {
		return
	}
	x.logger.Info().
		Log(`forkjoin: scheduler stopping`)
}

func (x *schedulerLogger) affinityDenied(requested, granted int) {
	if x == nil {
		return
	}
	x.logger.Warning().
		Int(`requested`, requested).
		Int(`granted`, granted).
		Log(`forkjoin: some requested cpus have no process affinity`)
}

func (x *schedulerLogger) workerStarted(index, cpu int) {
	if x == nil {
		return
	}
	x.logger.Debug().
		Int(`worker`, index).
		Int(`cpu`, cpu).
		Log(`forkjoin: worker started`)
}

func (x *schedulerLogger) workerStopped(index int) {
	if x == nil {
		return
	}
	x.logger.Debug().
		Int(`worker`, index).
		Log(`forkjoin: worker stopped`)
}

func (x *schedulerLogger) workerStarving(index int) {
	if x == nil {
		return
	}
	if _, ok := x.starving.Allow(index); !ok {
		return
	}
	x.logger.Trace().
		Int(`worker`, index).
		Log(`forkjoin: worker starving`)
}

func (x *schedulerLogger) taskTransferred(from, to int) {
	if x == nil {
		return
	}
	x.logger.Trace().
		Int(`from`, from).
		Int(`to`, to).
		Log(`forkjoin: task transferred`)
}
