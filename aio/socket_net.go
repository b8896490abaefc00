// File: aio/socket_net.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable socket built on net.UDPConn. Receives block in the runtime
// netpoller bounded by read deadlines; sends complete synchronously.

package aio

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/momentics/hioload-relay/api"
)

// NetFacility opens sockets backed by the Go runtime network poller.
type NetFacility struct{}

// Name implements Facility.
func (NetFacility) Name() string { return FacilityNet }

// Open implements Facility.
func (NetFacility) Open(cfg SocketConfig) (Socket, error) {
	bind, err := bindEndpoint(cfg)
	if err != nil {
		return nil, err
	}
	optCfg := cfg
	optCfg.ReadBuffer, optCfg.WriteBuffer = 0, 0
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return controlSockopts(c, optCfg)
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", bind.AddrPort().String())
	if err != nil {
		return nil, api.SetupError("listen", err).WithContext("endpoint", bind.String())
	}
	conn := pc.(*net.UDPConn)
	if cfg.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(cfg.ReadBuffer); err != nil {
			conn.Close()
			return nil, api.SetupError("set read buffer", err)
		}
	}
	if cfg.WriteBuffer > 0 {
		if err := conn.SetWriteBuffer(cfg.WriteBuffer); err != nil {
			conn.Close()
			return nil, api.SetupError("set write buffer", err)
		}
	}
	local, err := api.EndpointFromAddrPort(conn.LocalAddr().(*net.UDPAddr).AddrPort())
	if err != nil {
		conn.Close()
		return nil, api.SetupError("local address", err)
	}
	return &netSocket{
		conn:  conn,
		local: local,
		done:  make(chan struct{}),
		rx:    newOpQueue(),
		tx:    newOpQueue(),
	}, nil
}

type netSocket struct {
	conn      *net.UDPConn
	local     api.Endpoint
	done      chan struct{}
	closeOnce sync.Once

	rxMu sync.Mutex
	rx   opQueue

	txMu sync.Mutex
	tx   opQueue
}

func (s *netSocket) LocalEndpoint() api.Endpoint { return s.local }

func (s *netSocket) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *netSocket) SubmitReceive(token uint32, buf []byte) error {
	if s.closed() {
		return api.ErrTransportClosed
	}
	s.rxMu.Lock()
	s.rx.push(token, buf, api.Endpoint{})
	s.rxMu.Unlock()
	return nil
}

// WaitReceive completes at most one receive per call.
func (s *netSocket) WaitReceive(out []Completion, timeout time.Duration) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	s.rxMu.Lock()
	defer s.rxMu.Unlock()

	var deadline time.Time
	switch {
	case timeout == 0:
		deadline = time.Now()
	case timeout > 0:
		deadline = time.Now().Add(timeout)
	}
	for {
		if s.closed() {
			return s.rx.flush(OpReceive, out)
		}
		op := s.rx.peek()
		if op == nil {
			return 0, nil
		}
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return s.rx.flush(OpReceive, out)
		}
		m, ap, err := s.conn.ReadFromUDPAddrPort(op.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return 0, nil
			}
			if errors.Is(err, net.ErrClosed) {
				return s.rx.flush(OpReceive, out)
			}
			out[0] = Completion{Token: op.token, Op: OpReceive, Err: err}
			s.rx.pop()
			return 1, nil
		}
		if m == 0 {
			continue
		}
		from, ferr := api.EndpointFromAddrPort(ap)
		out[0] = Completion{Token: op.token, Op: OpReceive, N: m, From: from, Err: ferr}
		s.rx.pop()
		return 1, nil
	}
}

func (s *netSocket) SubmitSend(token uint32, buf []byte, to api.Endpoint) error {
	if s.closed() {
		return api.ErrTransportClosed
	}
	s.txMu.Lock()
	s.tx.push(token, buf, to)
	s.txMu.Unlock()
	return nil
}

// WaitSend performs the pending sends synchronously; timeout is not used.
func (s *netSocket) WaitSend(out []Completion, _ time.Duration) (int, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	n := 0
	for n < len(out) {
		if s.closed() {
			if n > 0 {
				return n, nil
			}
			return s.tx.flush(OpSend, out)
		}
		op := s.tx.peek()
		if op == nil {
			break
		}
		m, err := s.conn.WriteToUDPAddrPort(op.buf, op.to.AddrPort())
		if errors.Is(err, net.ErrClosed) {
			continue
		}
		out[n] = Completion{Token: op.token, Op: OpSend, N: m, Err: err}
		s.tx.pop()
		n++
	}
	return n, nil
}

func (s *netSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
