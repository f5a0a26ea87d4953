// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package forkjoin

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	cpus           []int
	logger         *logiface.Logger[logiface.Event]
	queueCapacity  int
	metricsEnabled bool
}

// --- Scheduler Options ---

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (x *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return x.applySchedulerFunc(opts)
}

// WithCPUs restricts the scheduler to the given CPUs, spawning one worker per
// CPU in the intersection of cpus and the process's affinity mask. The
// default is every CPU the process has affinity for. [New] fails with
// [ErrNoSchedulableCPUs] if the intersection is empty.
func WithCPUs(cpus ...int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		for _, cpu := range cpus {
			if cpu < 0 {
				return fmt.Errorf(`forkjoin: invalid cpu: %d`, cpu)
			}
		}
		opts.cpus = cpus
		return nil
	}}
}

// WithQueueCapacity sets the per-worker task queue capacity. At most
// capacity-1 tasks may be queued on a worker at once; pushing beyond that is
// a contract violation. Defaults to [DefaultQueueCapacity].
func WithQueueCapacity(capacity int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if capacity < 2 {
			return fmt.Errorf(`forkjoin: invalid queue capacity: %d`, capacity)
		}
		opts.queueCapacity = capacity
		return nil
	}}
}

// WithLogger sets the structured logger used for scheduler lifecycle,
// starvation and steal events. Accepts nil (the default), disabling logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, see [Scheduler.Metrics].
// Adds a few atomic increments to the hot path.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveSchedulerOptions applies Option instances to schedulerOptions.
func resolveSchedulerOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		queueCapacity: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
