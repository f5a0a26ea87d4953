//go:build !linux

package forkjoin

import (
	"runtime"
)

// processCPUs returns the CPUs the process has affinity for. Affinity queries
// are not supported on this platform; every CPU is assumed available.
func processCPUs() ([]int, error) {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus, nil
}

// pinThread is a no-op on this platform; pinning silently fails, which the
// scheduler tolerates.
func pinThread(int) {}
