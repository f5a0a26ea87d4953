//go:build linux

package forkjoin

import (
	"golang.org/x/sys/unix"
)

// processCPUs returns the CPUs the process has affinity for, in ascending
// order.
func processCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}

	const cpuSetSize = 1024 // matches unix.CPUSet's underlying kernel CPU_SETSIZE

	cpus := make([]int, 0, set.Count())
	for cpu := 0; cpu < cpuSetSize && len(cpus) < cap(cpus); cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}

	return cpus, nil
}

// pinThread binds the calling thread to a single CPU. The caller must have
// locked its OS thread. Failures are silently tolerated; pinning is an
// optimization, not a correctness requirement.
func pinThread(cpu int) {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set)
}
