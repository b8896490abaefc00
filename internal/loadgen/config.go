// internal/loadgen/config.go
// Author: momentics <momentics@gmail.com>

package loadgen

import (
	"fmt"
	"net/netip"
	"time"
)

// Config describes one load run.
type Config struct {
	Relay          string        // relay IPv4 address
	ClientPort     int           // session announcement port
	PeerPort       int           // relayed traffic port
	Sessions       int           // concurrent sessions
	KbpsPerSession int           // target bitrate per session
	PacketSize     int           // upper bound for datagram size
	Duration       time.Duration // sending time, 0 runs until cancelled
	ReportInterval time.Duration
	Settle         time.Duration // pause between announcing and sending
	Drain          time.Duration // wait for stragglers after sending stops
}

// DefaultConfig mirrors the relay defaults on loopback.
func DefaultConfig() Config {
	return Config{
		Relay:          "127.0.0.1",
		ClientPort:     3478,
		PeerPort:       3479,
		Sessions:       100,
		KbpsPerSession: 100,
		PacketSize:     1400,
		ReportInterval: 4 * time.Second,
		Settle:         100 * time.Millisecond,
		Drain:          time.Second,
	}
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	addr, err := netip.ParseAddr(c.Relay)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("relay %q is not a valid IPv4 address", c.Relay)
	}
	if c.ClientPort <= 0 || c.ClientPort > 65535 || c.PeerPort <= 0 || c.PeerPort > 65535 {
		return fmt.Errorf("relay ports must be in 1..65535")
	}
	if c.Sessions <= 0 {
		return fmt.Errorf("sessions must be positive, got %d", c.Sessions)
	}
	if c.KbpsPerSession <= 0 {
		return fmt.Errorf("kbps must be positive, got %d", c.KbpsPerSession)
	}
	if c.PacketSize < HeaderSize || c.PacketSize > MaxPacketSize {
		return fmt.Errorf("packet size must be in %d..%d, got %d", HeaderSize, MaxPacketSize, c.PacketSize)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report interval must be positive")
	}
	return nil
}

func (c Config) clientAddr() netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr(c.Relay), uint16(c.ClientPort))
}

func (c Config) peerAddr() netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr(c.Relay), uint16(c.PeerPort))
}

const shrinkStep = 128

// Workload turns a per-session bitrate into a packet rate and size. Packets
// shrink in steps of 128 bytes until at least one is sent per second; the
// rate is never below one packet per second.
func Workload(kbps, packetSize int) (pps float64, size int) {
	bytesPerSec := float64(kbps) * 1024 / 8
	size = packetSize
	pps = bytesPerSec / float64(size)
	for pps < 1 && size-shrinkStep >= HeaderSize {
		size -= shrinkStep
		pps = bytesPerSec / float64(size)
	}
	if pps < 1 {
		pps = 1
	}
	return pps, size
}
