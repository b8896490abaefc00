// Package transport
// Author: momentics <momentics@gmail.com>
//
// Transport construction, send path and shutdown.

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/core/concurrency"
	"github.com/momentics/hioload-relay/internal/logging"
	"github.com/momentics/hioload-relay/pool"
)

// Transport is one relay socket with its buffers and pump threads.
type Transport struct {
	cfg   Config
	log   *slog.Logger
	alloc pool.ArenaAllocator

	sock      aio.Socket
	reads     *pool.BufferPool
	writes    *pool.BufferPool
	completed *concurrency.RingBuffer[*pool.Buffer]
	sendq     *concurrency.RingBuffer[*pool.Buffer]

	processor api.PacketProcessor

	started     atomic.Bool
	stopping    atomic.Bool
	inboundDone atomic.Bool
	wg          sync.WaitGroup
	closeOnce   sync.Once
	closeErr    error

	faultMu sync.Mutex
	fault   error

	stats counters
}

// New opens the socket and allocates both pools. Pumps start with Start.
func New(fac aio.Facility, cfg Config, opts ...Option) (*Transport, error) {
	if fac == nil {
		return nil, api.SetupError("transport", fmt.Errorf("%w: nil facility", api.ErrInvalidArgument))
	}
	if err := cfg.Validate(); err != nil {
		return nil, api.SetupError("transport config", err).WithContext("transport", cfg.Name)
	}
	t := &Transport{cfg: cfg, log: logging.NopLogger()}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(logging.KeyComponent, "transport", logging.KeyTransport, cfg.Name)

	var err error
	if t.reads, err = t.newPool(api.ReadPool); err != nil {
		return nil, api.SetupError("read pool", err).WithContext("transport", cfg.Name)
	}
	if t.writes, err = t.newPool(api.WritePool); err != nil {
		t.reads.Close()
		return nil, api.SetupError("write pool", err).WithContext("transport", cfg.Name)
	}
	t.completed = concurrency.NewRingBuffer[*pool.Buffer](uint64(cfg.BufferCount))
	t.sendq = concurrency.NewRingBuffer[*pool.Buffer](uint64(cfg.BufferCount))

	if t.sock, err = fac.Open(cfg.Socket); err != nil {
		t.reads.Close()
		t.writes.Close()
		return nil, fmt.Errorf("transport %s: open %s socket: %w", cfg.Name, fac.Name(), err)
	}
	t.log = t.log.With(logging.KeyLocalAddr, t.sock.LocalEndpoint().String())
	return t, nil
}

func (t *Transport) newPool(kind api.PoolKind) (*pool.BufferPool, error) {
	if t.alloc != nil {
		return pool.NewBufferPoolWithAllocator(kind, t.cfg.BufferCount, t.cfg.BufferSize, t.alloc)
	}
	return pool.NewBufferPool(kind, t.cfg.BufferCount, t.cfg.BufferSize)
}

// Start launches the Inbound Pump, Consume Stage and Outbound Pump. Every
// received datagram is handed to processor on the Consume Stage thread.
func (t *Transport) Start(processor api.PacketProcessor) error {
	if processor == nil {
		return fmt.Errorf("%w: nil processor", api.ErrInvalidArgument)
	}
	if t.stopping.Load() {
		return api.ErrTransportClosed
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("transport %s: already started", t.cfg.Name)
	}
	t.processor = processor
	t.wg.Add(3)
	go t.inboundPump()
	go t.consumeStage()
	go t.outboundPump()
	t.log.Info("transport started",
		"buffers", t.cfg.BufferCount,
		"queued_reads", t.cfg.QueuedReads,
		"read_exhaustion", string(t.cfg.ReadExhaustion))
	return nil
}

// LocalEndpoint returns the bound address of the socket.
func (t *Transport) LocalEndpoint() api.Endpoint { return t.sock.LocalEndpoint() }

// Name returns the configured transport name.
func (t *Transport) Name() string { return t.cfg.Name }

// AcquireWrite takes a free write buffer, or reports that none is available.
func (t *Transport) AcquireWrite() (*pool.Buffer, bool) {
	return t.writes.Acquire()
}

// ReleaseWrite returns an unsent write buffer.
func (t *Transport) ReleaseWrite(buf *pool.Buffer) error {
	return t.writes.Release(buf)
}

// Send queues a filled write buffer for the Outbound Pump. Ownership passes
// to the transport in every case: on error the buffer is already released.
// A buffer from another pool is rejected and left with the caller.
func (t *Transport) Send(buf *pool.Buffer) error {
	if buf.Pool() != t.writes {
		return fmt.Errorf("%w: buffer from another pool", api.ErrInvalidArgument)
	}
	if buf.Len() == 0 {
		t.releaseWrite(buf)
		return fmt.Errorf("%w: empty datagram", api.ErrInvalidArgument)
	}
	if t.stopping.Load() {
		t.releaseWrite(buf)
		return api.ErrTransportClosed
	}
	// The queue has a cell per write buffer, so it only reads full while
	// the outbound pump is mid-dequeue at the wrap point.
	for !t.sendq.Enqueue(buf) {
		runtime.Gosched()
	}
	return nil
}

// Err returns the fault that stopped a pump, if any.
func (t *Transport) Err() error {
	t.faultMu.Lock()
	defer t.faultMu.Unlock()
	return t.fault
}

func (t *Transport) setFault(err error) {
	t.faultMu.Lock()
	if t.fault == nil {
		t.fault = err
	}
	t.faultMu.Unlock()
}

// Close shuts the socket, waits for all pump threads and frees the pools.
// It is idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.stopping.Store(true)
		t.closeErr = t.sock.Close()
		t.wg.Wait()
		t.drainSendQueue()
		for _, p := range []*pool.BufferPool{t.reads, t.writes} {
			if err := p.Close(); err != nil {
				t.log.Warn("pool not freed", logging.KeyError, err, "pool", p.Kind().String())
			}
		}
		t.log.Info("transport closed")
	})
	return t.closeErr
}

func (t *Transport) drainSendQueue() {
	for {
		buf, ok := t.sendq.Dequeue()
		if !ok {
			return
		}
		t.releaseWrite(buf)
	}
}

func (t *Transport) releaseRead(buf *pool.Buffer) {
	if err := t.reads.Release(buf); err != nil {
		t.log.Error("read buffer release", logging.KeyError, err, "index", buf.Index())
	}
}

func (t *Transport) releaseWrite(buf *pool.Buffer) {
	if err := t.writes.Release(buf); err != nil {
		t.log.Error("write buffer release", logging.KeyError, err, "index", buf.Index())
	}
}

// isClosed reports whether err means the socket is gone.
func isClosed(err error) bool {
	return errors.Is(err, api.ErrTransportClosed)
}
