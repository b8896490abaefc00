// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness reactor interface.

package reactor

import "time"

// Interest selects which readiness conditions a registration reports.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// EventReactor multiplexes readiness of a small set of descriptors.
// Wait is meant to be called from a single goroutine; Wake may be called from
// any goroutine.
type EventReactor interface {
	// Register adds fd with the given interest, level-triggered.
	Register(fd uintptr, interest Interest) error

	// Unregister removes fd.
	Unregister(fd uintptr) error

	// Wait blocks up to timeout (negative means forever) and writes ready
	// descriptors into events. A wakeup returns with Woken set.
	Wait(events []Event, timeout time.Duration) (n int, woken bool, err error)

	// Wake makes current and future Wait calls return immediately.
	Wake() error

	// Close releases the reactor's descriptors.
	Close() error
}

// Event describes one ready descriptor.
type Event struct {
	Fd       uintptr
	Readable bool
	Writable bool
	Error    bool
}

func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := int(d / time.Millisecond)
	if ms == 0 && d > 0 {
		ms = 1
	}
	return ms
}
