//go:build linux

package numa

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// currentCPU returns the CPU the calling OS thread is currently running on.
func currentCPU() (int, error) {
	cpu, err := unix.SchedGetcpu()
	if err != nil {
		return 0, fmt.Errorf("sched_getcpu: %w", err)
	}

	return cpu, nil
}

// pinToCPU binds the calling OS thread's affinity mask to exactly cpu. The
// caller must have already called runtime.LockOSThread.
func pinToCPU(cpu int) error {
	var set unix.CPUSet

	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity(cpu=%d): %w", cpu, err)
	}

	runtime.Gosched()

	return nil
}
