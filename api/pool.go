// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Pool kinds for the fixed read/write buffer sets of a transport.

package api

// PoolKind selects the read or write buffer set of a transport.
type PoolKind uint8

const (
	ReadPool PoolKind = iota
	WritePool
)

func (k PoolKind) String() string {
	if k == WritePool {
		return "write"
	}
	return "read"
}

// FreeState returns the pool-resident state for buffers of this kind.
func (k PoolKind) FreeState() BufferState {
	if k == WritePool {
		return FreeWrite
	}
	return FreeRead
}
