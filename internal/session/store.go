// File: internal/session/store.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Concurrent, insert-only Session Directory.

package session

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/momentics/hioload-relay/api"
)

// defaultPresize avoids early map growth under a connect storm.
const defaultPresize = 1 << 12

// Directory maps session ids to sessions. All methods are safe for
// concurrent use.
type Directory struct {
	sessions *xsync.MapOf[uint64, Session]
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		sessions: xsync.NewMapOf[uint64, Session](xsync.WithPresize(defaultPresize)),
	}
}

// GetOrCreate returns the session registered for id, registering
// {id, candidate} first if there is none. When callers race, exactly one
// candidate wins and every caller observes the winner.
func (d *Directory) GetOrCreate(id uint64, candidate api.Endpoint) (Session, bool) {
	return d.sessions.LoadOrStore(id, Session{ID: id, Client: candidate})
}

// TryGet returns the session for id if present. It never inserts.
func (d *Directory) TryGet(id uint64) (Session, bool) {
	return d.sessions.Load(id)
}

// Len returns the number of sessions.
func (d *Directory) Len() int {
	return d.sessions.Size()
}

// Range calls fn for each session until fn returns false. Sessions inserted
// during the walk may or may not be visited.
func (d *Directory) Range(fn func(Session) bool) {
	d.sessions.Range(func(_ uint64, s Session) bool {
		return fn(s)
	})
}
