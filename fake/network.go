// File: fake/network.go
// Author: momentics <momentics@gmail.com>

package fake

import (
	"errors"
	"sync"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
)

// ErrAddressInUse is returned when a port is already bound without
// ReusePort on both sides.
var ErrAddressInUse = errors.New("fake: address already in use")

const firstEphemeralPort = 40000

// Network routes datagrams between fake sockets by destination port.
// Sockets sharing a port through ReusePort form a group; a sender is always
// steered to the same member of the group.
type Network struct {
	mu       sync.Mutex
	addr     api.Endpoint
	groups   map[uint16][]*Socket
	nextPort uint16
	openErr  error
}

// NewNetwork creates an empty network whose sockets live on 127.0.0.1.
func NewNetwork() *Network {
	return &Network{
		addr:     api.EndpointFrom4([4]byte{127, 0, 0, 1}, 0),
		groups:   make(map[uint16][]*Socket),
		nextPort: firstEphemeralPort,
	}
}

// Name implements aio.Facility.
func (n *Network) Name() string { return "fake" }

// FailOpen makes every following Open return err, until cleared with nil.
func (n *Network) FailOpen(err error) {
	n.mu.Lock()
	n.openErr = err
	n.mu.Unlock()
}

// Open implements aio.Facility.
func (n *Network) Open(cfg aio.SocketConfig) (aio.Socket, error) {
	return n.OpenSocket(cfg)
}

// OpenSocket is Open with the concrete return type.
func (n *Network) OpenSocket(cfg aio.SocketConfig) (*Socket, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.openErr != nil {
		return nil, api.SetupError("bind", n.openErr)
	}
	port := cfg.Port
	if port == 0 {
		for len(n.groups[n.nextPort]) > 0 {
			n.nextPort++
		}
		port = n.nextPort
		n.nextPort++
	}
	group := n.groups[port]
	for _, s := range group {
		if !cfg.ReusePort || !s.cfg.ReusePort {
			return nil, api.SetupError("bind", ErrAddressInUse).WithContext("port", port)
		}
	}
	s := newSocket(n, api.Endpoint{Addr: n.addr.Addr, Port: port}, cfg)
	n.groups[port] = append(group, s)
	return s, nil
}

// Inject delivers payload to whatever socket is bound to to, as if sent
// from from. It reports whether a socket received it.
func (n *Network) Inject(payload []byte, from, to api.Endpoint) bool {
	n.mu.Lock()
	group := n.groups[to.Port]
	var dst *Socket
	if len(group) > 0 {
		dst = group[steer(from, len(group))]
	}
	n.mu.Unlock()
	if dst == nil {
		return false
	}
	return dst.enqueue(payload, from)
}

// Group returns the sockets bound to port, in bind order.
func (n *Network) Group(port uint16) []*Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Socket(nil), n.groups[port]...)
}

func (n *Network) unbind(s *Socket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	group := n.groups[s.local.Port]
	for i, g := range group {
		if g == s {
			n.groups[s.local.Port] = append(group[:i:i], group[i+1:]...)
			break
		}
	}
	if len(n.groups[s.local.Port]) == 0 {
		delete(n.groups, s.local.Port)
	}
}

// steer hashes the source endpoint onto a reuseport group member.
func steer(from api.Endpoint, n int) int {
	h := from.Addr*2654435761 ^ uint32(from.Port)*40503
	return int(h % uint32(n))
}
