// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Relay transport engine. A Transport owns one asynchronous socket and two
// fixed buffer pools, and drives them with three OS-thread-locked pumps:
//
//	socket -> Inbound Pump -> completed-read ring -> Consume Stage -> PacketProcessor
//	Send() -> send ring -> Outbound Pump -> socket
//
// The pumps never block indefinitely on an empty ring or pool; they wait with
// an adaptive backoff capped at Config.MaxBackoff. Closing the socket makes
// every pump observe a terminal completion and exit.

package transport
