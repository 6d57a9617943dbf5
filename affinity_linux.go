//go:build linux

// affinity_linux.go pins worker threads with sched_setaffinity.
package frio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// maxCPUs is the number of CPUs a unix.CPUSet can describe.
const maxCPUs = 1024

// detectCores returns the CPUs the calling thread may run on, ascending.
// An error from the kernel yields nil (no pinning).
func detectCores() []int {
	var set unix.CPUSet

	err := unix.SchedGetaffinity(0, &set)
	if err != nil {
		return nil
	}

	count := set.Count()
	cores := make([]int, 0, count)

	for cpu := 0; cpu < maxCPUs && len(cores) < count; cpu++ {
		if set.IsSet(cpu) {
			cores = append(cores, cpu)
		}
	}

	return cores
}

// pinCurrentThread restricts the calling OS thread to core.
// The caller must hold runtime.LockOSThread.
func pinCurrentThread(core int) error {
	if core < 0 || core >= maxCPUs {
		return fmt.Errorf("pin: core %d out of range", core)
	}

	var set unix.CPUSet
	set.Set(core)

	// pid 0 is the calling thread, not the whole process.
	err := unix.SchedSetaffinity(0, &set)
	if err != nil {
		return fmt.Errorf("pin: sched_setaffinity core %d: %w", core, err)
	}

	return nil
}
