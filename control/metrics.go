// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus packet counters. Every label combination is resolved at
// construction so the per-packet path is a single atomic add.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/momentics/hioload-relay/api"
)

const namespace = "hioload_relay"

var dropReasons = [...]api.DropReason{
	api.DropShortPacket,
	api.DropUnknownSession,
	api.DropNoBuffer,
	api.DropQueueFull,
	api.DropOversize,
}

var ports = [...]api.Port{api.ClientPort, api.PeerPort}

// Metrics implements api.Counters on top of Prometheus.
type Metrics struct {
	read    [len(ports)]prometheus.Counter
	written [len(ports)]prometheus.Counter
	dropped [len(ports)][len(dropReasons)]prometheus.Counter

	DroppedVec *prometheus.CounterVec
}

// NewMetrics registers the relay counters with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the relay counters with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		DroppedVec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_packets_total",
			Help:      "Datagrams not relayed, by receiving port and reason.",
		}, []string{"port", "reason"}),
	}
	for _, p := range ports {
		m.read[p] = factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      p.String() + "_port_read_packets_total",
			Help:      "Datagrams received on the " + p.String() + " port.",
		})
		m.written[p] = factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      p.String() + "_port_written_packets_total",
			Help:      "Datagrams queued for sending to " + p.String() + " endpoints.",
		})
		for i, r := range dropReasons {
			m.dropped[p][i] = m.DroppedVec.WithLabelValues(p.String(), string(r))
		}
	}
	return m
}

// PacketRead implements api.Counters.
func (m *Metrics) PacketRead(p api.Port) {
	if int(p) < len(m.read) {
		m.read[p].Inc()
	}
}

// PacketWritten implements api.Counters.
func (m *Metrics) PacketWritten(p api.Port) {
	if int(p) < len(m.written) {
		m.written[p].Inc()
	}
}

// PacketDropped implements api.Counters.
func (m *Metrics) PacketDropped(p api.Port, reason api.DropReason) {
	if int(p) >= len(m.dropped) {
		return
	}
	for i, r := range dropReasons {
		if r == reason {
			m.dropped[p][i].Inc()
			return
		}
	}
	m.DroppedVec.WithLabelValues(p.String(), string(reason)).Inc()
}

var _ api.Counters = (*Metrics)(nil)
