// File: aio/aio.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package aio

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-relay/api"
)

// Op identifies the kind of a submitted operation.
type Op uint8

const (
	OpReceive Op = iota + 1
	OpSend
)

func (o Op) String() string {
	switch o {
	case OpReceive:
		return "receive"
	case OpSend:
		return "send"
	default:
		return "unknown"
	}
}

// Completion is the outcome of one submitted operation. Token is the value
// passed at submission; the transport uses the buffer index.
type Completion struct {
	Token uint32
	Op    Op
	N     int
	From  api.Endpoint
	Err   error
}

// Terminal reports whether c signals that the socket has shut down.
func (c Completion) Terminal() bool { return c.N == 0 && c.Err == nil }

// Socket is an asynchronous UDP socket. SubmitReceive/WaitReceive and
// SubmitSend/WaitSend are each driven by a single goroutine; the two
// directions may run concurrently. Buffers stay owned by the socket from
// submission until their completion is returned.
type Socket interface {
	SubmitReceive(token uint32, buf []byte) error
	// WaitReceive fills out with up to len(out) completions, waiting at most
	// timeout (negative waits forever). It returns 0, nil on timeout and
	// api.ErrTransportClosed once closed and drained.
	WaitReceive(out []Completion, timeout time.Duration) (int, error)

	SubmitSend(token uint32, buf []byte, to api.Endpoint) error
	WaitSend(out []Completion, timeout time.Duration) (int, error)

	LocalEndpoint() api.Endpoint
	// Close cancels outstanding operations; each completes as terminal.
	Close() error
}

// SocketConfig describes the socket a Facility opens.
type SocketConfig struct {
	Host            string // IPv4 bind address, empty for any
	Port            uint16 // 0 picks an ephemeral port
	ReusePort       bool   // SO_REUSEPORT
	BindIncomingCPU bool   // apply SO_INCOMING_CPU=IncomingCPU
	IncomingCPU     int
	ReadBuffer      int // SO_RCVBUF, 0 keeps the OS default
	WriteBuffer     int // SO_SNDBUF, 0 keeps the OS default
}

// Facility opens sockets of one implementation.
type Facility interface {
	Name() string
	Open(cfg SocketConfig) (Socket, error)
}

// Facility names accepted by ByName.
const (
	FacilityAuto  = "auto"
	FacilityEpoll = "epoll"
	FacilityNet   = "net"
)

// ByName resolves a facility by name. "auto" selects the best implementation
// available on this platform.
func ByName(name string) (Facility, error) {
	switch name {
	case "", FacilityAuto:
		return Default(), nil
	case FacilityNet:
		return NetFacility{}, nil
	case FacilityEpoll:
		return epollFacility()
	default:
		return nil, fmt.Errorf("%w: unknown io facility %q", api.ErrInvalidArgument, name)
	}
}

func bindEndpoint(cfg SocketConfig) (api.Endpoint, error) {
	host := cfg.Host
	if host == "" {
		host = "0.0.0.0"
	}
	ep, err := api.ParseEndpoint(fmt.Sprintf("%s:%d", host, cfg.Port))
	if err != nil {
		return api.Endpoint{}, fmt.Errorf("%w: bind address %q: %v", api.ErrInvalidArgument, host, err)
	}
	return ep, nil
}
