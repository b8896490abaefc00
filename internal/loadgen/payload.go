// internal/loadgen/payload.go
// Author: momentics <momentics@gmail.com>
//
// Probe datagram layout: session id | sequence | send time | padding.

package loadgen

import (
	"encoding/binary"
	"time"
)

const (
	// HeaderSize is the fixed probe prefix.
	HeaderSize = 24
	// MaxPacketSize keeps probes inside a standard Ethernet MTU.
	MaxPacketSize = 1472
)

type probe struct {
	session uint64
	seq     uint64
	sent    time.Time
}

// encodeProbe writes the header into buf and fills the rest with a
// position-derived pattern so corruption is detectable.
func encodeProbe(buf []byte, p probe) {
	binary.BigEndian.PutUint64(buf[0:8], p.session)
	binary.BigEndian.PutUint64(buf[8:16], p.seq)
	binary.BigEndian.PutUint64(buf[16:24], uint64(p.sent.UnixNano()))
	for i := HeaderSize; i < len(buf); i++ {
		buf[i] = byte(i)
	}
}

func decodeProbe(buf []byte) (probe, bool) {
	if len(buf) < HeaderSize {
		return probe{}, false
	}
	for i := HeaderSize; i < len(buf); i++ {
		if buf[i] != byte(i) {
			return probe{}, false
		}
	}
	return probe{
		session: binary.BigEndian.Uint64(buf[0:8]),
		seq:     binary.BigEndian.Uint64(buf[8:16]),
		sent:    time.Unix(0, int64(binary.BigEndian.Uint64(buf[16:24]))),
	}, true
}
