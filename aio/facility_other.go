//go:build !linux
// +build !linux

// File: aio/facility_other.go
// Author: momentics <momentics@gmail.com>

package aio

import (
	"fmt"

	"github.com/momentics/hioload-relay/api"
)

// Default returns the portable net facility.
func Default() Facility { return NetFacility{} }

func epollFacility() (Facility, error) {
	return nil, fmt.Errorf("aio: epoll facility: %w", api.ErrNotSupported)
}
