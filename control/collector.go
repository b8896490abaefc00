// control/collector.go
// Author: momentics <momentics@gmail.com>
//
// Scrape-time export of engine statistics.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-relay/internal/relay"
	"github.com/momentics/hioload-relay/internal/transport"
)

// StatsSource provides engine statistics; *relay.Engine satisfies it.
type StatsSource interface {
	Stats() relay.Stats
}

// EngineCollector reads engine statistics on every scrape.
type EngineCollector struct {
	src StatsSource

	sessions        *prometheus.Desc
	poolFree        *prometheus.Desc
	poolCapacity    *prometheus.Desc
	poolMisses      *prometheus.Desc
	received        *prometheus.Desc
	receiveErrors   *prometheus.Desc
	sent            *prometheus.Desc
	sendErrors      *prometheus.Desc
	processorErrors *prometheus.Desc
	panics          *prometheus.Desc
}

// NewEngineCollector builds a collector over src.
func NewEngineCollector(src StatsSource) *EngineCollector {
	t := []string{"transport"}
	tp := []string{"transport", "pool"}
	return &EngineCollector{
		src:             src,
		sessions:        prometheus.NewDesc(namespace+"_sessions", "Registered sessions.", nil, nil),
		poolFree:        prometheus.NewDesc(namespace+"_pool_free_buffers", "Free buffers per pool.", tp, nil),
		poolCapacity:    prometheus.NewDesc(namespace+"_pool_capacity_buffers", "Fixed buffer count per pool.", tp, nil),
		poolMisses:      prometheus.NewDesc(namespace+"_pool_misses_total", "Acquire calls that found the pool empty.", tp, nil),
		received:        prometheus.NewDesc(namespace+"_transport_received_total", "Datagrams completed by the inbound pump.", t, nil),
		receiveErrors:   prometheus.NewDesc(namespace+"_transport_receive_errors_total", "Failed receive completions.", t, nil),
		sent:            prometheus.NewDesc(namespace+"_transport_sent_total", "Datagrams sent by the outbound pump.", t, nil),
		sendErrors:      prometheus.NewDesc(namespace+"_transport_send_errors_total", "Failed sends, each dropping its datagram.", t, nil),
		processorErrors: prometheus.NewDesc(namespace+"_transport_processor_errors_total", "Processor calls that returned an error.", t, nil),
		panics:          prometheus.NewDesc(namespace+"_transport_processor_panics_total", "Processor calls that panicked.", t, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.sessions, c.poolFree, c.poolCapacity, c.poolMisses, c.received,
		c.receiveErrors, c.sent, c.sendErrors, c.processorErrors, c.panics,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(st.Sessions))
	c.collectTransport(ch, st.Client)
	for _, p := range st.Peers {
		c.collectTransport(ch, p)
	}
}

func (c *EngineCollector) collectTransport(ch chan<- prometheus.Metric, ts transport.Stats) {
	for pool, ps := range map[string]struct{ free, capacity, misses float64 }{
		"read":  {float64(ts.ReadPool.Free), float64(ts.ReadPool.Capacity), float64(ts.ReadPool.Misses)},
		"write": {float64(ts.WritePool.Free), float64(ts.WritePool.Capacity), float64(ts.WritePool.Misses)},
	} {
		ch <- prometheus.MustNewConstMetric(c.poolFree, prometheus.GaugeValue, ps.free, ts.Name, pool)
		ch <- prometheus.MustNewConstMetric(c.poolCapacity, prometheus.GaugeValue, ps.capacity, ts.Name, pool)
		ch <- prometheus.MustNewConstMetric(c.poolMisses, prometheus.CounterValue, ps.misses, ts.Name, pool)
	}
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(ts.Received), ts.Name)
	ch <- prometheus.MustNewConstMetric(c.receiveErrors, prometheus.CounterValue, float64(ts.ReceiveErrors), ts.Name)
	ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(ts.Sent), ts.Name)
	ch <- prometheus.MustNewConstMetric(c.sendErrors, prometheus.CounterValue, float64(ts.SendErrors), ts.Name)
	ch <- prometheus.MustNewConstMetric(c.processorErrors, prometheus.CounterValue, float64(ts.ProcessorErrors), ts.Name)
	ch <- prometheus.MustNewConstMetric(c.panics, prometheus.CounterValue, float64(ts.Panics), ts.Name)
}

var _ prometheus.Collector = (*EngineCollector)(nil)
