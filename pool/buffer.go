// File: pool/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
)

// Buffer is one pinned block of a BufferPool plus the transfer metadata
// (valid length and endpoint) of the operation that currently owns it.
// Only the current owner may touch its fields.
type Buffer struct {
	index int
	data  []byte
	n     int
	ep    api.Endpoint
	state atomic.Uint32
	pool  *BufferPool
}

// Index returns the stable handle of this buffer within its pool.
func (b *Buffer) Index() int { return b.index }

// Bytes returns the valid bytes, bounded by Len.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Storage returns the whole block for I/O submission.
func (b *Buffer) Storage() []byte { return b.data }

// Cap returns the block size.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the number of valid bytes.
func (b *Buffer) Len() int { return b.n }

// SetLen records the number of valid bytes after an I/O completion.
func (b *Buffer) SetLen(n int) {
	if n < 0 || n > len(b.data) {
		panic(fmt.Sprintf("pool: length %d out of range [0,%d]", n, len(b.data)))
	}
	b.n = n
}

// Fill copies p into the block and sets Len. It returns false, leaving the
// buffer empty, when p does not fit.
func (b *Buffer) Fill(p []byte) bool {
	if len(p) > len(b.data) {
		b.n = 0
		return false
	}
	b.n = copy(b.data, p)
	return true
}

// Endpoint returns the peer endpoint of the current transfer.
func (b *Buffer) Endpoint() api.Endpoint { return b.ep }

// SetEndpoint records the source (read) or destination (write) endpoint.
func (b *Buffer) SetEndpoint(ep api.Endpoint) { b.ep = ep }

// State returns the current ownership state.
func (b *Buffer) State() api.BufferState { return api.BufferState(b.state.Load()) }

// Transition moves the buffer from one state to the next; it returns false if
// the buffer was not in state from.
func (b *Buffer) Transition(from, to api.BufferState) bool {
	return b.state.CompareAndSwap(uint32(from), uint32(to))
}

// Release returns the buffer to its pool.
func (b *Buffer) Release() error { return b.pool.Release(b) }

// Pool returns the pool that owns b.
func (b *Buffer) Pool() *BufferPool { return b.pool }

func (b *Buffer) reset() {
	b.n = 0
	b.ep = api.Endpoint{}
}
