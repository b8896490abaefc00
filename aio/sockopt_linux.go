//go:build linux
// +build linux

// File: aio/sockopt_linux.go
// Author: momentics <momentics@gmail.com>

package aio

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-relay/api"
)

// applySockopts sets the configured socket options on a raw descriptor.
func applySockopts(fd int, cfg SocketConfig) error {
	if cfg.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return api.SetupError("setsockopt SO_REUSEPORT", err)
		}
	}
	if cfg.BindIncomingCPU {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_INCOMING_CPU, cfg.IncomingCPU); err != nil {
			return api.SetupError("setsockopt SO_INCOMING_CPU", err).WithContext("cpu", cfg.IncomingCPU)
		}
	}
	if cfg.ReadBuffer > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.ReadBuffer); err != nil {
			return api.SetupError("setsockopt SO_RCVBUF", err)
		}
	}
	if cfg.WriteBuffer > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.WriteBuffer); err != nil {
			return api.SetupError("setsockopt SO_SNDBUF", err)
		}
	}
	return nil
}

// controlSockopts applies the options from a net.ListenConfig hook.
func controlSockopts(c syscall.RawConn, cfg SocketConfig) error {
	var serr error
	if err := c.Control(func(fd uintptr) { serr = applySockopts(int(fd), cfg) }); err != nil {
		return err
	}
	return serr
}
