// File: core/concurrency/backoff.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adaptive backoff for empty-pool and empty-queue waits. The first few waits
// only yield the processor; later waits sleep for a doubling interval capped
// at Max, so a waiting pump never blocks for longer than Max.

package concurrency

import (
	"runtime"
	"time"
)

const (
	defaultMinBackoff = time.Microsecond
	defaultMaxBackoff = time.Millisecond
	yieldRounds       = 16
)

// Backoff is not safe for concurrent use; each waiting goroutine owns one.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	rounds int
	cur    time.Duration
}

// NewBackoff returns a Backoff; non-positive bounds fall back to 1µs / 1ms.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = defaultMinBackoff
	}
	if max <= 0 {
		max = defaultMaxBackoff
	}
	if max < min {
		max = min
	}
	return &Backoff{Min: min, Max: max}
}

// Next returns the duration the next Wait will sleep (0 for a yield) and
// advances the schedule.
func (b *Backoff) Next() time.Duration {
	if b.rounds < yieldRounds {
		b.rounds++
		return 0
	}
	if b.cur == 0 {
		b.cur = b.Min
	} else {
		b.cur *= 2
		if b.cur > b.Max {
			b.cur = b.Max
		}
	}
	return b.cur
}

// Wait yields or sleeps according to the schedule.
func (b *Backoff) Wait() {
	if d := b.Next(); d > 0 {
		time.Sleep(d)
		return
	}
	runtime.Gosched()
}

// Reset restarts the schedule after progress was made.
func (b *Backoff) Reset() {
	b.rounds = 0
	b.cur = 0
}
