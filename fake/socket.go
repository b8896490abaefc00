// File: fake/socket.go
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
)

// Datagram is one recorded send.
type Datagram struct {
	From    api.Endpoint
	To      api.Endpoint
	Payload []byte
}

type inbound struct {
	payload []byte
	from    api.Endpoint
}

type pending struct {
	token uint32
	buf   []byte
	to    api.Endpoint
}

// Socket is an in-memory aio.Socket attached to a Network.
type Socket struct {
	net   *Network
	local api.Endpoint
	cfg   aio.SocketConfig

	mu       sync.Mutex
	inbox    []inbound
	rx       []pending
	tx       []pending
	sent     []Datagram
	sendErr  error
	waitErr  error
	waitErrN int
	closed   bool

	signal chan struct{}
	done   chan struct{}
}

func newSocket(n *Network, local api.Endpoint, cfg aio.SocketConfig) *Socket {
	return &Socket{
		net:    n,
		local:  local,
		cfg:    cfg,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Config returns the configuration the socket was opened with.
func (s *Socket) Config() aio.SocketConfig { return s.cfg }

// LocalEndpoint implements aio.Socket.
func (s *Socket) LocalEndpoint() api.Endpoint { return s.local }

// Inject queues payload for receipt as if sent from from.
func (s *Socket) Inject(payload []byte, from api.Endpoint) bool {
	return s.enqueue(payload, from)
}

// SetSendError makes following sends complete with err; nil restores them.
func (s *Socket) SetSendError(err error) {
	s.mu.Lock()
	s.sendErr = err
	s.mu.Unlock()
}

// FailWaitSend makes the next `times` calls to WaitSend return err without
// completing anything. Queued sends stay queued.
func (s *Socket) FailWaitSend(err error, times int) {
	s.mu.Lock()
	s.waitErr, s.waitErrN = err, times
	s.mu.Unlock()
}

// Sent returns a copy of every datagram sent successfully so far.
func (s *Socket) Sent() []Datagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Datagram(nil), s.sent...)
}

// PendingReceives returns the number of submitted, uncompleted receives.
func (s *Socket) PendingReceives() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

func (s *Socket) enqueue(payload []byte, from api.Endpoint) bool {
	if len(payload) == 0 {
		return true
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.inbox = append(s.inbox, inbound{payload: append([]byte(nil), payload...), from: from})
	s.mu.Unlock()
	s.wake()
	return true
}

func (s *Socket) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// SubmitReceive implements aio.Socket.
func (s *Socket) SubmitReceive(token uint32, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrTransportClosed
	}
	s.rx = append(s.rx, pending{token: token, buf: buf})
	return nil
}

// WaitReceive implements aio.Socket.
func (s *Socket) WaitReceive(out []aio.Completion, timeout time.Duration) (int, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	for {
		s.mu.Lock()
		if s.closed {
			n, err := flush(&s.rx, aio.OpReceive, out)
			s.mu.Unlock()
			return n, err
		}
		n := 0
		for n < len(out) && len(s.rx) > 0 && len(s.inbox) > 0 {
			op, dg := s.rx[0], s.inbox[0]
			s.rx, s.inbox = s.rx[1:], s.inbox[1:]
			out[n] = aio.Completion{Token: op.token, Op: aio.OpReceive, N: copy(op.buf, dg.payload), From: dg.from}
			n++
		}
		idle := len(s.rx) == 0
		s.mu.Unlock()
		if n > 0 || idle || timeout == 0 {
			return n, nil
		}
		select {
		case <-s.signal:
		case <-s.done:
		case <-timer:
			return 0, nil
		}
	}
}

// SubmitSend implements aio.Socket.
func (s *Socket) SubmitSend(token uint32, buf []byte, to api.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrTransportClosed
	}
	s.tx = append(s.tx, pending{token: token, buf: buf, to: to})
	return nil
}

// WaitSend implements aio.Socket. Sends complete immediately and are routed
// through the Network.
func (s *Socket) WaitSend(out []aio.Completion, _ time.Duration) (int, error) {
	s.mu.Lock()
	if s.closed {
		n, err := flush(&s.tx, aio.OpSend, out)
		s.mu.Unlock()
		return n, err
	}
	if s.waitErrN > 0 {
		s.waitErrN--
		err := s.waitErr
		s.mu.Unlock()
		return 0, err
	}
	var routed []Datagram
	n := 0
	for n < len(out) && len(s.tx) > 0 {
		op := s.tx[0]
		s.tx = s.tx[1:]
		if s.sendErr != nil {
			out[n] = aio.Completion{Token: op.token, Op: aio.OpSend, Err: s.sendErr}
		} else {
			dg := Datagram{From: s.local, To: op.to, Payload: append([]byte(nil), op.buf...)}
			s.sent = append(s.sent, dg)
			routed = append(routed, dg)
			out[n] = aio.Completion{Token: op.token, Op: aio.OpSend, N: len(op.buf)}
		}
		n++
	}
	s.mu.Unlock()

	for _, dg := range routed {
		s.net.Inject(dg.Payload, dg.From, dg.To)
	}
	return n, nil
}

// Close implements aio.Socket.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	s.net.unbind(s)
	return nil
}

func flush(ops *[]pending, op aio.Op, out []aio.Completion) (int, error) {
	n := 0
	for n < len(out) && len(*ops) > 0 {
		out[n] = aio.Completion{Token: (*ops)[0].token, Op: op}
		*ops = (*ops)[1:]
		n++
	}
	if n == 0 {
		return 0, api.ErrTransportClosed
	}
	return n, nil
}

var _ aio.Socket = (*Socket)(nil)
var _ aio.Facility = (*Network)(nil)
