//go:build linux
// +build linux

// File: pool/arena_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux arena allocator backed by anonymous mmap, outside the Go heap.

package pool

import "golang.org/x/sys/unix"

type mmapAllocator struct{}

func (mmapAllocator) Alloc(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

func (mmapAllocator) Free(b []byte) error {
	return unix.Munmap(b)
}

func platformAllocator() ArenaAllocator { return mmapAllocator{} }
