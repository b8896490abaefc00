//go:build linux
// +build linux

// File: aio/facility_linux.go
// Author: momentics <momentics@gmail.com>

package aio

// Default returns the epoll facility.
func Default() Facility { return EpollFacility{} }

func epollFacility() (Facility, error) { return EpollFacility{}, nil }
