package forkjoin

import (
	"errors"
)

// Standard errors.
var (
	// ErrNoSchedulableCPUs is returned by New when the requested CPU set
	// does not intersect the process's affinity mask, i.e. no workers could
	// be spawned.
	ErrNoSchedulableCPUs = errors.New("forkjoin: no schedulable cpus: requested set does not intersect the process affinity mask")

	// ErrSchedulerClosed is returned when operations are attempted on a
	// scheduler whose workers have been stopped.
	ErrSchedulerClosed = errors.New("forkjoin: scheduler is closed")

	// ErrAlreadyInitialized is returned by Init when a default scheduler
	// already exists.
	ErrAlreadyInitialized = errors.New("forkjoin: default scheduler already initialized")
)
