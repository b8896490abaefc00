// File: pool/arena.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral pinned arena. Concrete allocators are selected at build
// time through platform-specific files.

package pool

import "fmt"

// ArenaAllocator provides address-stable memory regions for I/O buffers.
type ArenaAllocator interface {
	Alloc(size int) ([]byte, error)
	Free([]byte) error
}

// Arena is a contiguous region split into count blocks of blockSize bytes.
type Arena struct {
	mem       []byte
	blockSize int
	count     int
	alloc     ArenaAllocator
}

// NewArena allocates count*blockSize bytes from the platform allocator.
func NewArena(count, blockSize int) (*Arena, error) {
	return NewArenaWithAllocator(count, blockSize, platformAllocator())
}

// NewArenaWithAllocator allocates the arena from alloc.
func NewArenaWithAllocator(count, blockSize int, alloc ArenaAllocator) (*Arena, error) {
	if count <= 0 || blockSize <= 0 {
		return nil, fmt.Errorf("arena: invalid geometry %d x %d", count, blockSize)
	}
	mem, err := alloc.Alloc(count * blockSize)
	if err != nil {
		return nil, fmt.Errorf("arena: alloc %d bytes: %w", count*blockSize, err)
	}
	return &Arena{mem: mem, blockSize: blockSize, count: count, alloc: alloc}, nil
}

// Block returns the full-capacity view of block i. The returned slice cannot
// be grown into the neighbouring block.
func (a *Arena) Block(i int) []byte {
	off := i * a.blockSize
	return a.mem[off : off+a.blockSize : off+a.blockSize]
}

// Len returns the number of blocks.
func (a *Arena) Len() int { return a.count }

// BlockSize returns the size of each block.
func (a *Arena) BlockSize() int { return a.blockSize }

// Free returns the region to the allocator. No block may be in use.
func (a *Arena) Free() error {
	if a.mem == nil {
		return nil
	}
	mem := a.mem
	a.mem = nil
	return a.alloc.Free(mem)
}

// heapAllocator allocates from the Go heap. Go's collector does not move
// objects, so the region stays address-stable while referenced.
type heapAllocator struct{}

func (heapAllocator) Alloc(size int) ([]byte, error) { return make([]byte, size), nil }
func (heapAllocator) Free([]byte) error              { return nil }

// HeapAllocator returns the portable Go-heap allocator.
func HeapAllocator() ArenaAllocator { return heapAllocator{} }
