//go:build !linux
// +build !linux

// File: aio/sockopt_other.go
// Author: momentics <momentics@gmail.com>

package aio

import (
	"fmt"
	"syscall"

	"github.com/momentics/hioload-relay/api"
)

// controlSockopts rejects the Linux-only options; buffer sizes are applied
// through net.UDPConn after listening.
func controlSockopts(_ syscall.RawConn, cfg SocketConfig) error {
	if cfg.ReusePort || cfg.BindIncomingCPU {
		return fmt.Errorf("aio: SO_REUSEPORT/SO_INCOMING_CPU: %w", api.ErrNotSupported)
	}
	return nil
}
