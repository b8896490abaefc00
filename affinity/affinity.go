// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"
)

// SetAffinity pins the calling OS thread to the cpuID-th CPU the process is
// allowed to run on (wrapping around). The caller must hold
// runtime.LockOSThread.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: invalid cpu %d", cpuID)
	}
	return setAffinityPlatform(cpuID)
}

// LockAndPin locks the calling goroutine to its OS thread and, when cpuID is
// non-negative, pins that thread to the CPU. The returned function undoes the
// lock. A pinning failure leaves the thread locked but unpinned.
func LockAndPin(cpuID int) (unlock func(), err error) {
	runtime.LockOSThread()
	if cpuID >= 0 {
		err = SetAffinity(cpuID)
	}
	return runtime.UnlockOSThread, err
}
