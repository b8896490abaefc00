// Package session
// Author: momentics <momentics@gmail.com>
//
// Session Directory: the insert-only routing table from 64-bit session id to
// the client endpoint that first announced it. Entries are never mutated or
// removed; the table lives as long as the process.
//
// Reads and get-or-insert run concurrently from every consume stage, so the
// directory is backed by a lock-free sharded map.

package session
