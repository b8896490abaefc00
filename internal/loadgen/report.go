// internal/loadgen/report.go
// Author: momentics <momentics@gmail.com>

package loadgen

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Report is a snapshot of a run. Interval rates cover the time since the
// previous report; totals cover the whole run.
type Report struct {
	Elapsed  time.Duration
	Interval time.Duration

	Sent     int64
	Received int64
	Invalid  int64 // datagrams that failed probe validation
	Lost     int64 // sent minus received, final only

	UpBytes   int64
	DownBytes int64
	UpBps     float64 // bits per second over the interval
	DownBps   float64

	RTTMean time.Duration
	RTTP50  time.Duration
	RTTP99  time.Duration
	RTTMax  time.Duration

	Final bool
}

// LossRatio is the fraction of sent probes not received.
func (r Report) LossRatio() float64 {
	if r.Sent == 0 {
		return 0
	}
	return float64(r.Lost) / float64(r.Sent)
}

// InFlight returns probes sent but not yet seen.
func (r Report) InFlight() int64 {
	if d := r.Sent - r.Received; d > 0 {
		return d
	}
	return 0
}

func (r Report) String() string {
	s := fmt.Sprintf("up %s/s down %s/s | sent %s recv %s",
		bitrate(r.UpBps), bitrate(r.DownBps),
		humanize.Comma(r.Sent), humanize.Comma(r.Received))
	if r.Final {
		s += fmt.Sprintf(" lost %s (%.2f%%)", humanize.Comma(r.Lost), r.LossRatio()*100)
	} else {
		s += " in flight " + humanize.Comma(r.InFlight())
	}
	if r.Invalid > 0 {
		s += " invalid " + humanize.Comma(r.Invalid)
	}
	return s + fmt.Sprintf(" | rtt mean %v p50 %v p99 %v max %v",
		r.RTTMean, r.RTTP50, r.RTTP99, r.RTTMax)
}

// bitrate renders bits per second with SI prefixes, e.g. "12 Mbit".
func bitrate(bps float64) string {
	v, unit := humanize.ComputeSI(bps)
	return humanize.FtoaWithDigits(v, 2) + " " + unit + "bit"
}
