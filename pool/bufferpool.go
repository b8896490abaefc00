// File: pool/bufferpool.go
// Package pool implements the fixed-cardinality pinned buffer pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/core/concurrency"
)

const (
	// DefaultBufferCount is the number of buffers per pool.
	DefaultBufferCount = 32768
	// DefaultBufferSize fits one Ethernet-MTU datagram.
	DefaultBufferSize = 1500
)

var (
	// ErrDoubleRelease reports a Release of a buffer that is already free.
	ErrDoubleRelease = errors.New("pool: buffer released twice")
	// ErrForeignBuffer reports a Release of a buffer owned by another pool.
	ErrForeignBuffer = errors.New("pool: buffer belongs to another pool")
)

// BufferPool hands out a fixed set of pinned buffers. Acquire and Release are
// safe for concurrent use and never block.
type BufferPool struct {
	kind    api.PoolKind
	arena   *Arena
	buffers []Buffer
	free    *concurrency.RingBuffer[*Buffer]

	acquires atomic.Uint64
	releases atomic.Uint64
	misses   atomic.Uint64
}

// NewBufferPool builds a pool of count buffers of size bytes on the platform
// arena allocator.
func NewBufferPool(kind api.PoolKind, count, size int) (*BufferPool, error) {
	return NewBufferPoolWithAllocator(kind, count, size, platformAllocator())
}

// NewBufferPoolWithAllocator builds a pool whose arena comes from alloc.
func NewBufferPoolWithAllocator(kind api.PoolKind, count, size int, alloc ArenaAllocator) (*BufferPool, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: buffer count %d", api.ErrInvalidArgument, count)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", api.ErrInvalidArgument, size)
	}
	arena, err := NewArenaWithAllocator(count, size, alloc)
	if err != nil {
		return nil, err
	}
	p := &BufferPool{
		kind:    kind,
		arena:   arena,
		buffers: make([]Buffer, count),
		free:    concurrency.NewRingBuffer[*Buffer](uint64(count)),
	}
	freeState := uint32(kind.FreeState())
	for i := range p.buffers {
		b := &p.buffers[i]
		b.index = i
		b.data = arena.Block(i)
		b.pool = p
		b.state.Store(freeState)
		if !p.free.Enqueue(b) {
			return nil, fmt.Errorf("pool: free-list rejected buffer %d", i)
		}
	}
	return p, nil
}

// Kind returns whether this is a read or write pool.
func (p *BufferPool) Kind() api.PoolKind { return p.kind }

// Capacity returns the fixed number of buffers.
func (p *BufferPool) Capacity() int { return len(p.buffers) }

// BufferSize returns the storage size of each buffer.
func (p *BufferPool) BufferSize() int { return p.arena.BlockSize() }

// Buffer returns the buffer with the given index, as carried in I/O
// completion tokens.
func (p *BufferPool) Buffer(index int) (*Buffer, bool) {
	if index < 0 || index >= len(p.buffers) {
		return nil, false
	}
	return &p.buffers[index], true
}

// Acquire takes a free buffer. It returns false when none is available.
// The buffer comes back with Len 0, a zero endpoint, and its state advanced
// to the first owned state of the pool kind (InFlightRead or Filled).
func (p *BufferPool) Acquire() (*Buffer, bool) {
	b, ok := p.free.Dequeue()
	if !ok {
		p.misses.Add(1)
		return nil, false
	}
	b.reset()
	if p.kind == api.WritePool {
		b.state.Store(uint32(api.Filled))
	} else {
		b.state.Store(uint32(api.InFlightRead))
	}
	p.acquires.Add(1)
	return b, true
}

// Release returns b to the free-list. Misuse is reported and leaves the pool
// unchanged.
func (p *BufferPool) Release(b *Buffer) error {
	if b == nil || b.pool != p {
		return ErrForeignBuffer
	}
	freeState := p.kind.FreeState()
	for {
		cur := b.state.Load()
		if api.BufferState(cur) == freeState {
			return ErrDoubleRelease
		}
		if b.state.CompareAndSwap(cur, uint32(freeState)) {
			break
		}
	}
	// The free-list holds exactly Capacity cells, so a full report here is a
	// concurrent Dequeue that has claimed its cell but not yet recycled it.
	for !p.free.Enqueue(b) {
		runtime.Gosched()
	}
	p.releases.Add(1)
	return nil
}

// Stats returns a snapshot of the pool counters.
func (p *BufferPool) Stats() api.BufferPoolStats {
	free := p.free.Len()
	return api.BufferPoolStats{
		Capacity: len(p.buffers),
		Free:     free,
		InUse:    len(p.buffers) - free,
		Acquires: p.acquires.Load(),
		Releases: p.releases.Load(),
		Misses:   p.misses.Load(),
	}
}

// Close frees the arena. Every buffer must be back in the pool and no I/O may
// reference its storage.
func (p *BufferPool) Close() error {
	if n := p.free.Len(); n != len(p.buffers) {
		return fmt.Errorf("pool: close with %d buffers outstanding", len(p.buffers)-n)
	}
	for i := range p.buffers {
		p.buffers[i].data = nil
	}
	return p.arena.Free()
}
