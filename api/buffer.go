// Package api
// Author: momentics
//
// Ownership states and accounting for pinned relay buffers.
//
// A buffer is referenced by exactly one owner at any instant: a free-list, an
// in-flight I/O operation, or a completed-work ring.

package api

// BufferState tracks which stage of the read or write cycle owns a buffer.
//
// Read cycle:  FreeRead -> InFlightRead -> CompletedRead -> FreeRead
// Write cycle: FreeWrite -> Filled -> InFlightWrite -> FreeWrite
type BufferState uint32

const (
	FreeRead BufferState = iota
	InFlightRead
	CompletedRead
	FreeWrite
	Filled
	InFlightWrite
)

func (s BufferState) String() string {
	switch s {
	case FreeRead:
		return "free-read"
	case InFlightRead:
		return "in-flight-read"
	case CompletedRead:
		return "completed-read"
	case FreeWrite:
		return "free-write"
	case Filled:
		return "filled"
	case InFlightWrite:
		return "in-flight-write"
	default:
		return "unknown"
	}
}

// IsFree reports whether the state is one of the pool-resident states.
func (s BufferState) IsFree() bool { return s == FreeRead || s == FreeWrite }

// BufferPoolStats aggregates buffer acquisition/reuse stats.
type BufferPoolStats struct {
	Capacity int
	Free     int
	InUse    int
	Acquires uint64
	Releases uint64
	Misses   uint64 // Acquire calls that found the pool empty
}
