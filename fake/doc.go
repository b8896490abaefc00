// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Network is an in-memory datagram switch that implements aio.Facility, so
// transports and the relay engine can run end to end without OS sockets.
package fake
