// File: api/control.go
// Package api defines the relay telemetry contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Port identifies one of the relay's listening roles.
type Port uint8

const (
	ClientPort Port = iota
	PeerPort
)

func (p Port) String() string {
	if p == PeerPort {
		return "peer"
	}
	return "client"
}

// DropReason labels why a datagram was not relayed.
type DropReason string

const (
	DropShortPacket    DropReason = "short_packet"
	DropUnknownSession DropReason = "unknown_session"
	DropNoBuffer       DropReason = "no_buffer"
	DropQueueFull      DropReason = "queue_full"
	DropOversize       DropReason = "oversize"
)

// Counters receives packet events from the relay. Implementations must be
// safe for concurrent use and must not block.
type Counters interface {
	PacketRead(port Port)
	PacketWritten(port Port)
	PacketDropped(port Port, reason DropReason)
}

// NopCounters discards all events.
type NopCounters struct{}

func (NopCounters) PacketRead(Port)                {}
func (NopCounters) PacketWritten(Port)             {}
func (NopCounters) PacketDropped(Port, DropReason) {}
