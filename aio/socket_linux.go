//go:build linux
// +build linux

// File: aio/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking UDP socket driven by two epoll reactors, one per direction.
// Submitted operations wait in FIFO order and are executed with recvfrom /
// sendto as soon as the descriptor reports readiness.

package aio

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/reactor"
)

// EpollFacility opens epoll-driven sockets.
type EpollFacility struct{}

// Name implements Facility.
func (EpollFacility) Name() string { return FacilityEpoll }

// Open implements Facility.
func (EpollFacility) Open(cfg SocketConfig) (Socket, error) {
	return openEpollSocket(cfg)
}

type epollSocket struct {
	fd    int
	local api.Endpoint

	// mu guards the descriptor lifetime: I/O paths hold it shared, Close
	// exclusively.
	mu       sync.RWMutex
	released bool
	closing  atomic.Bool

	rxMu sync.Mutex
	rx   opQueue
	rxR  reactor.EventReactor
	rxEv []reactor.Event
	rxSA unix.RawSockaddrInet4
	rxSL uint32

	txMu sync.Mutex
	tx   opQueue
	txR  reactor.EventReactor
	txEv []reactor.Event
	txSA unix.SockaddrInet4
}

func openEpollSocket(cfg SocketConfig) (_ Socket, err error) {
	bind, err := bindEndpoint(cfg)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return nil, api.SetupError("socket", err)
	}
	s := &epollSocket{fd: fd, rx: newOpQueue(), tx: newOpQueue()}
	defer func() {
		if err != nil {
			if s.rxR != nil {
				s.rxR.Close()
			}
			if s.txR != nil {
				s.txR.Close()
			}
			unix.Close(fd)
		}
	}()

	if err := applySockopts(fd, cfg); err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(bind.Port), Addr: bind.As4()}); err != nil {
		return nil, api.SetupError("bind", err).WithContext("endpoint", bind.String())
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, api.SetupError("getsockname", err)
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		s.local = api.EndpointFrom4(sa4.Addr, uint16(sa4.Port))
	}

	if s.rxR, err = reactor.NewReactor(); err != nil {
		return nil, api.SetupError("receive reactor", err)
	}
	if err = s.rxR.Register(uintptr(fd), reactor.Readable); err != nil {
		return nil, api.SetupError("receive reactor", err)
	}
	if s.txR, err = reactor.NewReactor(); err != nil {
		return nil, api.SetupError("send reactor", err)
	}
	if err = s.txR.Register(uintptr(fd), reactor.Writable); err != nil {
		return nil, api.SetupError("send reactor", err)
	}
	s.rxEv = make([]reactor.Event, 1)
	s.txEv = make([]reactor.Event, 1)
	return s, nil
}

func (s *epollSocket) LocalEndpoint() api.Endpoint { return s.local }

func (s *epollSocket) SubmitReceive(token uint32, buf []byte) error {
	if s.closing.Load() {
		return api.ErrTransportClosed
	}
	s.rxMu.Lock()
	s.rx.push(token, buf, api.Endpoint{})
	s.rxMu.Unlock()
	return nil
}

// WaitReceive returns at once when nothing has been submitted.
func (s *epollSocket) WaitReceive(out []Completion, timeout time.Duration) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	s.rxMu.Lock()
	defer s.rxMu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		s.mu.RLock()
		if s.released || s.closing.Load() {
			s.mu.RUnlock()
			return s.rx.flush(OpReceive, out)
		}
		if s.rx.len() == 0 {
			s.mu.RUnlock()
			return 0, nil
		}
		if n := s.drainReceives(out); n > 0 {
			s.mu.RUnlock()
			return n, nil
		}
		wait := remaining(timeout, deadline)
		if wait == 0 {
			s.mu.RUnlock()
			return 0, nil
		}
		_, _, err := s.rxR.Wait(s.rxEv, wait)
		s.mu.RUnlock()
		if err != nil {
			return 0, err
		}
	}
}

// drainReceives runs pending receives until the socket would block.
func (s *epollSocket) drainReceives(out []Completion) int {
	n := 0
	for n < len(out) {
		op := s.rx.peek()
		if op == nil {
			break
		}
		m, errno := s.recvfrom(op.buf)
		switch {
		case errno == unix.EAGAIN:
			return n
		case errno == unix.EINTR:
			continue
		case errno != 0:
			out[n] = Completion{Token: op.token, Op: OpReceive, Err: errno}
		case m == 0:
			// Empty datagram; the receive stays armed.
			continue
		default:
			c := Completion{Token: op.token, Op: OpReceive, N: m}
			if s.rxSA.Family == unix.AF_INET {
				port := (*[2]byte)(unsafe.Pointer(&s.rxSA.Port))
				c.From = api.EndpointFrom4(s.rxSA.Addr, uint16(port[0])<<8|uint16(port[1]))
			}
			out[n] = c
		}
		s.rx.pop()
		n++
	}
	return n
}

// recvfrom reads one datagram into buf and the source address into rxSA.
// unix.Recvfrom returns a freshly allocated Sockaddr per call.
func (s *epollSocket) recvfrom(buf []byte) (int, unix.Errno) {
	if len(buf) == 0 {
		return 0, unix.EINVAL
	}
	s.rxSA = unix.RawSockaddrInet4{}
	s.rxSL = unix.SizeofSockaddrInet4
	n, _, errno := unix.Syscall6(unix.SYS_RECVFROM, uintptr(s.fd),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), 0,
		uintptr(unsafe.Pointer(&s.rxSA)), uintptr(unsafe.Pointer(&s.rxSL)))
	if errno != 0 {
		return 0, errno
	}
	return int(n), 0
}

func (s *epollSocket) SubmitSend(token uint32, buf []byte, to api.Endpoint) error {
	if s.closing.Load() {
		return api.ErrTransportClosed
	}
	s.txMu.Lock()
	s.tx.push(token, buf, to)
	s.txMu.Unlock()
	return nil
}

func (s *epollSocket) WaitSend(out []Completion, timeout time.Duration) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		s.mu.RLock()
		if s.released || s.closing.Load() {
			s.mu.RUnlock()
			return s.tx.flush(OpSend, out)
		}
		if s.tx.len() == 0 {
			s.mu.RUnlock()
			return 0, nil
		}
		if n := s.drainSends(out); n > 0 {
			s.mu.RUnlock()
			return n, nil
		}
		wait := remaining(timeout, deadline)
		if wait == 0 {
			s.mu.RUnlock()
			return 0, nil
		}
		_, _, err := s.txR.Wait(s.txEv, wait)
		s.mu.RUnlock()
		if err != nil {
			return 0, err
		}
	}
}

func (s *epollSocket) drainSends(out []Completion) int {
	n := 0
	for n < len(out) {
		op := s.tx.peek()
		if op == nil {
			break
		}
		s.txSA.Addr = op.to.As4()
		s.txSA.Port = int(op.to.Port)
		err := unix.Sendto(s.fd, op.buf, 0, &s.txSA)
		switch {
		case err == unix.EAGAIN:
			return n
		case err == unix.EINTR:
			continue
		case err != nil:
			out[n] = Completion{Token: op.token, Op: OpSend, Err: err}
		default:
			out[n] = Completion{Token: op.token, Op: OpSend, N: len(op.buf)}
		}
		s.tx.pop()
		n++
	}
	return n
}

// Close wakes both waiters, then releases the descriptor once no I/O path
// holds it. Pending operations complete as terminal on the next Wait.
func (s *epollSocket) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	s.rxR.Wake()
	s.txR.Wake()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	err := unix.Close(s.fd)
	s.rxR.Close()
	s.txR.Close()
	return err
}
