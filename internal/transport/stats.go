// File: internal/transport/stats.go
// Author: momentics <momentics@gmail.com>

package transport

import (
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
)

type counters struct {
	received        atomic.Uint64
	receiveErrors   atomic.Uint64
	processed       atomic.Uint64
	processorErrors atomic.Uint64
	panics          atomic.Uint64
	sent            atomic.Uint64
	sendErrors      atomic.Uint64
}

// Stats is a point-in-time snapshot of a transport.
type Stats struct {
	Name            string              `json:"name"`
	LocalEndpoint   string              `json:"local_endpoint"`
	Received        uint64              `json:"received"`
	ReceiveErrors   uint64              `json:"receive_errors"`
	Processed       uint64              `json:"processed"`
	ProcessorErrors uint64              `json:"processor_errors"`
	Panics          uint64              `json:"panics"`
	Sent            uint64              `json:"sent"`
	SendErrors      uint64              `json:"send_errors"`
	CompletedQueue  int                 `json:"completed_queue"`
	SendQueue       int                 `json:"send_queue"`
	ReadPool        api.BufferPoolStats `json:"read_pool"`
	WritePool       api.BufferPoolStats `json:"write_pool"`
}

// Stats returns the current counters and pool occupancy.
func (t *Transport) Stats() Stats {
	return Stats{
		Name:            t.cfg.Name,
		LocalEndpoint:   t.sock.LocalEndpoint().String(),
		Received:        t.stats.received.Load(),
		ReceiveErrors:   t.stats.receiveErrors.Load(),
		Processed:       t.stats.processed.Load(),
		ProcessorErrors: t.stats.processorErrors.Load(),
		Panics:          t.stats.panics.Load(),
		Sent:            t.stats.sent.Load(),
		SendErrors:      t.stats.sendErrors.Load(),
		CompletedQueue:  t.completed.Len(),
		SendQueue:       t.sendq.Len(),
		ReadPool:        t.reads.Stats(),
		WritePool:       t.writes.Stats(),
	}
}
