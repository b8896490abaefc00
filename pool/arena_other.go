//go:build !linux
// +build !linux

// File: pool/arena_other.go
// Author: momentics <momentics@gmail.com>

package pool

func platformAllocator() ArenaAllocator { return heapAllocator{} }
