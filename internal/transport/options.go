// File: internal/transport/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"log/slog"

	"github.com/momentics/hioload-relay/pool"
)

// Option customizes transport construction.
type Option func(*Transport)

// WithLogger sets the logger; the transport adds its own attributes.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithAllocator overrides the arena allocator of both pools.
func WithAllocator(a pool.ArenaAllocator) Option {
	return func(t *Transport) {
		t.alloc = a
	}
}
