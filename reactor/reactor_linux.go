//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor with an eventfd wakeup.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// linuxReactor is an epoll-based event reactor.
type linuxReactor struct {
	epfd   int
	wakefd int
	woken  atomic.Bool
	raw    []unix.EpollEvent
}

// NewReactor constructs a new platform-specific EventReactor for Linux.
func NewReactor() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &linuxReactor{epfd: epfd, wakefd: wakefd}, nil
}

// Register adds a file descriptor to the epoll watch list.
func (r *linuxReactor) Register(fd uintptr, interest Interest) error {
	var ev unix.EpollEvent
	if interest&Readable != 0 {
		ev.Events |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *linuxReactor) Unregister(fd uintptr) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait polls for readiness. The wakeup eventfd is never drained, so once
// woken every later Wait returns immediately.
func (r *linuxReactor) Wait(events []Event, timeout time.Duration) (int, bool, error) {
	if r.woken.Load() {
		return 0, true, nil
	}
	if cap(r.raw) < len(events)+1 {
		r.raw = make([]unix.EpollEvent, len(events)+1)
	}
	raw := r.raw[:len(events)+1]
	n, err := unix.EpollWait(r.epfd, raw, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("epoll wait: %w", err)
	}
	out, woken := 0, false
	for i := 0; i < n; i++ {
		ev := raw[i]
		if int(ev.Fd) == r.wakefd {
			woken = true
			continue
		}
		if out == len(events) {
			continue
		}
		events[out] = Event{
			Fd:       uintptr(ev.Fd),
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Error:    ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
		out++
	}
	return out, woken, nil
}

// Wake signals the eventfd.
func (r *linuxReactor) Wake() error {
	if !r.woken.CompareAndSwap(false, true) {
		return nil
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(r.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close closes the epoll instance and the wakeup descriptor.
func (r *linuxReactor) Close() error {
	err := unix.Close(r.epfd)
	if cerr := unix.Close(r.wakefd); err == nil {
		err = cerr
	}
	return err
}
