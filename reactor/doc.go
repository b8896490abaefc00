// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness reactor used by the relay sockets:
// an epoll(7) instance plus an eventfd wakeup on Linux, and an unsupported
// stub elsewhere.
package reactor
