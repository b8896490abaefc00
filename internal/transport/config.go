// File: internal/transport/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/pool"
)

// ReadExhaustionPolicy decides what the Inbound Pump does when the read pool
// has no free buffer.
type ReadExhaustionPolicy string

const (
	// ReadExhaustionRetry waits with backoff until a buffer is released.
	ReadExhaustionRetry ReadExhaustionPolicy = "retry"
	// ReadExhaustionFail stops the Inbound Pump and records
	// api.ErrResourceExhausted.
	ReadExhaustionFail ReadExhaustionPolicy = "fail"
)

// Config holds the tunables of one transport.
type Config struct {
	// Name labels logs, e.g. "client" or "peer-3".
	Name   string
	Socket aio.SocketConfig

	BufferCount    int
	BufferSize     int
	QueuedReads    int
	ReadExhaustion ReadExhaustionPolicy
	MaxBackoff     time.Duration

	// PinCPU pins all pump threads of this transport to CPU slot CPU.
	PinCPU bool
	CPU    int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Name:           "transport",
		Socket:         aio.SocketConfig{},
		BufferCount:    pool.DefaultBufferCount,
		BufferSize:     pool.DefaultBufferSize,
		QueuedReads:    1,
		ReadExhaustion: ReadExhaustionRetry,
		MaxBackoff:     time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BufferCount <= 0:
		return fmt.Errorf("%w: buffer count %d", api.ErrInvalidArgument, c.BufferCount)
	case c.BufferSize < api.SessionIDSize:
		return fmt.Errorf("%w: buffer size %d", api.ErrInvalidArgument, c.BufferSize)
	case c.QueuedReads < 1:
		return fmt.Errorf("%w: queued reads %d", api.ErrInvalidArgument, c.QueuedReads)
	case c.QueuedReads > c.BufferCount:
		return fmt.Errorf("%w: queued reads %d exceed buffer count %d", api.ErrInvalidArgument, c.QueuedReads, c.BufferCount)
	case c.MaxBackoff <= 0:
		return fmt.Errorf("%w: max backoff %s", api.ErrInvalidArgument, c.MaxBackoff)
	case c.PinCPU && c.CPU < 0:
		return fmt.Errorf("%w: cpu %d", api.ErrInvalidArgument, c.CPU)
	}
	switch c.ReadExhaustion {
	case ReadExhaustionRetry, ReadExhaustionFail:
	default:
		return fmt.Errorf("%w: read exhaustion policy %q", api.ErrInvalidArgument, c.ReadExhaustion)
	}
	return nil
}
