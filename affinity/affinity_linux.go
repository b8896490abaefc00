//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// maxCPUs is the number of CPUs representable in unix.CPUSet.
const maxCPUs = 1024

// setAffinityPlatform maps the slot onto the process's allowed CPU set and
// narrows the calling thread's mask to that CPU.
func setAffinityPlatform(slot int) error {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return fmt.Errorf("affinity: sched_getaffinity: %w", err)
	}
	n := allowed.Count()
	if n == 0 {
		return fmt.Errorf("affinity: empty cpu mask")
	}
	slot %= n
	cpu := -1
	for i := 0; i < maxCPUs; i++ {
		if !allowed.IsSet(i) {
			continue
		}
		if slot == 0 {
			cpu = i
			break
		}
		slot--
	}
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}
