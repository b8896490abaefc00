// File: api/handler.go
// Package api defines the PacketProcessor interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// PacketProcessor consumes one received datagram. payload aliases a pooled
// buffer and is only valid for the duration of the call.
type PacketProcessor interface {
	ProcessPacket(payload []byte, from Endpoint) error
}

// ProcessorFunc adapts a plain function to PacketProcessor.
type ProcessorFunc func(payload []byte, from Endpoint) error

// ProcessPacket calls f(payload, from).
func (f ProcessorFunc) ProcessPacket(payload []byte, from Endpoint) error {
	return f(payload, from)
}
