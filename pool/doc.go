// Package pool
// Author: momentics <momentics@gmail.com>
//
// Fixed-cardinality, address-stable buffer pools for the relay transport.
// Every pool owns one pinned arena sliced into equal blocks; buffers move
// between the lock-free free-list and their current owner by pointer, and the
// pool never grows or shrinks after construction.
// See arena.go, buffer.go and bufferpool.go for implementation details.
package pool
