// File: internal/relay/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine wires one client transport and a SO_REUSEPORT group of peer
// transports, one per core, around a shared Session Directory.

package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/internal/logging"
	"github.com/momentics/hioload-relay/internal/session"
	"github.com/momentics/hioload-relay/internal/transport"
)

const (
	DefaultClientPort = 3478
	DefaultPeerPort   = 3479
)

// Config describes the relay listeners. Transport is the template applied
// to every transport; its Name, Socket and CPU fields are overwritten.
type Config struct {
	Host        string
	ClientPort  uint16
	PeerPort    uint16
	PeerSockets int
	PinCPUs     bool
	IncomingCPU bool
	ReadBuffer  int
	WriteBuffer int
	Transport   transport.Config
}

// DefaultConfig returns the production listener layout.
func DefaultConfig() Config {
	return Config{
		ClientPort:  DefaultClientPort,
		PeerPort:    DefaultPeerPort,
		PeerSockets: runtime.NumCPU(),
		IncomingCPU: true,
		Transport:   transport.DefaultConfig(),
	}
}

// Option customizes the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCounters sets the packet event sink.
func WithCounters(c api.Counters) Option {
	return func(e *Engine) {
		if c != nil {
			e.counters = c
		}
	}
}

// WithDirectory shares an existing Session Directory.
func WithDirectory(d *session.Directory) Option {
	return func(e *Engine) {
		if d != nil {
			e.dir = d
		}
	}
}

// Engine is a running relay.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	counters api.Counters
	dir      *session.Directory

	client *transport.Transport
	peers  []*transport.Transport

	started   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewEngine opens every socket and allocates every pool. Any failure closes
// what was already opened and is returned as a setup error.
func NewEngine(fac aio.Facility, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.PeerSockets < 1 {
		return nil, api.SetupError("relay config", fmt.Errorf("%w: peer sockets %d", api.ErrInvalidArgument, cfg.PeerSockets))
	}
	e := &Engine{cfg: cfg, log: logging.NopLogger(), counters: api.NopCounters{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.dir == nil {
		e.dir = session.NewDirectory()
	}
	e.log = e.log.With(logging.KeyComponent, "relay")

	tlog := e.log.With(logging.KeyPort, api.ClientPort.String())
	ccfg := e.transportConfig("client", cfg.ClientPort, false, 0)
	client, err := transport.New(fac, ccfg, transport.WithLogger(tlog))
	if err != nil {
		return nil, err
	}
	e.client = client

	peerPort := cfg.PeerPort
	for i := 0; i < cfg.PeerSockets; i++ {
		pcfg := e.transportConfig(fmt.Sprintf("peer-%d", i), peerPort, true, i)
		peer, err := transport.New(fac, pcfg, transport.WithLogger(e.log.With(logging.KeyPort, api.PeerPort.String())))
		if err != nil {
			e.Close()
			return nil, err
		}
		e.peers = append(e.peers, peer)
		// An ephemeral peer port is fixed by the first member of the group.
		peerPort = peer.LocalEndpoint().Port
	}
	return e, nil
}

func (e *Engine) transportConfig(name string, port uint16, peer bool, slot int) transport.Config {
	tc := e.cfg.Transport
	tc.Name = name
	tc.Socket = aio.SocketConfig{
		Host:        e.cfg.Host,
		Port:        port,
		ReadBuffer:  e.cfg.ReadBuffer,
		WriteBuffer: e.cfg.WriteBuffer,
	}
	tc.PinCPU = e.cfg.PinCPUs
	tc.CPU = slot
	if peer {
		tc.Socket.ReusePort = true
		tc.Socket.BindIncomingCPU = e.cfg.IncomingCPU
		tc.Socket.IncomingCPU = slot
	}
	return tc
}

// Start launches the pumps of every transport.
func (e *Engine) Start() error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("relay: already started")
	}
	client := NewClientProcessor(e.dir, e.counters, e.log)
	if err := e.client.Start(client); err != nil {
		return fmt.Errorf("start client transport: %w", err)
	}
	for _, p := range e.peers {
		if err := p.Start(NewPeerProcessor(e.dir, p, e.counters)); err != nil {
			return fmt.Errorf("start %s transport: %w", p.Name(), err)
		}
	}
	e.log.Info("relay started",
		"client", e.client.LocalEndpoint().String(),
		"peer", e.PeerEndpoint().String(),
		"peer_sockets", len(e.peers))
	return nil
}

// Directory returns the shared Session Directory.
func (e *Engine) Directory() *session.Directory { return e.dir }

// ClientEndpoint returns the bound client-port address.
func (e *Engine) ClientEndpoint() api.Endpoint { return e.client.LocalEndpoint() }

// PeerEndpoint returns the bound peer-port address shared by the group.
func (e *Engine) PeerEndpoint() api.Endpoint {
	if len(e.peers) == 0 {
		return api.Endpoint{}
	}
	return e.peers[0].LocalEndpoint()
}

// Err returns the first pump fault of any transport.
func (e *Engine) Err() error {
	for _, t := range e.transports() {
		if err := t.Err(); err != nil {
			return fmt.Errorf("%s: %w", t.Name(), err)
		}
	}
	return nil
}

// Stats snapshots the engine.
type Stats struct {
	Sessions int               `json:"sessions"`
	Client   transport.Stats   `json:"client"`
	Peers    []transport.Stats `json:"peers"`
}

// Stats returns the session count and every transport's counters.
func (e *Engine) Stats() Stats {
	st := Stats{Sessions: e.dir.Len(), Client: e.client.Stats()}
	for _, p := range e.peers {
		st.Peers = append(st.Peers, p.Stats())
	}
	return st
}

// Close stops every transport and waits for their threads.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		for _, t := range e.transports() {
			if err := t.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			}
		}
		e.closeErr = errors.Join(errs...)
		e.log.Info("relay stopped", "sessions", e.dir.Len())
	})
	return e.closeErr
}

func (e *Engine) transports() []*transport.Transport {
	out := make([]*transport.Transport, 0, len(e.peers)+1)
	if e.client != nil {
		out = append(out, e.client)
	}
	return append(out, e.peers...)
}
