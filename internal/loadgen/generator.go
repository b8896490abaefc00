// internal/loadgen/generator.go
// Author: momentics <momentics@gmail.com>
//
// Session simulator: every session owns a UDP socket that announces itself on
// the client port and receives the relayed stream; one shared socket plays
// the remote peer.

package loadgen

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-relay/internal/logging"
)

// Generator runs one load test against a relay.
type Generator struct {
	cfg  Config
	log  *slog.Logger
	pps  float64
	size int

	reg      metrics.Registry
	sent     metrics.Counter
	received metrics.Counter
	invalid  metrics.Counter
	up       metrics.Meter
	down     metrics.Meter
	rtt      metrics.Histogram // microseconds

	last struct {
		at        time.Time
		upBytes   int64
		downBytes int64
	}
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// New validates cfg and prepares the meters.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{cfg: cfg, log: logging.NopLogger(), reg: metrics.NewRegistry()}
	for _, o := range opts {
		o(g)
	}
	g.pps, g.size = Workload(cfg.KbpsPerSession, cfg.PacketSize)
	g.sent = metrics.NewRegisteredCounter("probes.sent", g.reg)
	g.received = metrics.NewRegisteredCounter("probes.received", g.reg)
	g.invalid = metrics.NewRegisteredCounter("probes.invalid", g.reg)
	g.up = metrics.NewRegisteredMeter("bytes.up", g.reg)
	g.down = metrics.NewRegisteredMeter("bytes.down", g.reg)
	g.rtt = metrics.NewRegisteredHistogram("rtt.us", g.reg, metrics.NewExpDecaySample(1028, 0.015))
	return g, nil
}

// Registry exposes the underlying go-metrics registry.
func (g *Generator) Registry() metrics.Registry { return g.reg }

// PacketRate returns the per-session packets per second and datagram size
// derived from the configured bitrate.
func (g *Generator) PacketRate() (float64, int) { return g.pps, g.size }

type session struct {
	id   uint64
	conn *net.UDPConn
}

// Run announces the sessions, streams probes until ctx is done or the
// configured duration elapses, then waits for stragglers and returns the
// final report. onReport, if set, receives interval reports.
func (g *Generator) Run(ctx context.Context, onReport func(Report)) (Report, error) {
	defer g.up.Stop()
	defer g.down.Stop()

	peer, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return Report{}, fmt.Errorf("peer socket: %w", err)
	}
	defer peer.Close()

	sessions, err := g.openSessions()
	defer func() {
		for _, s := range sessions {
			s.conn.Close()
		}
	}()
	if err != nil {
		return Report{}, err
	}
	g.log.Info("sessions announced",
		logging.KeyCount, len(sessions),
		"pps", g.pps,
		"packet_size", g.size)

	var recv sync.WaitGroup
	for _, s := range sessions {
		s := s
		recv.Add(1)
		go func() {
			defer recv.Done()
			g.receive(s)
		}()
	}

	start := time.Now()
	g.last.at = start

	select {
	case <-time.After(g.cfg.Settle):
	case <-ctx.Done():
	}

	sendCtx := ctx
	if g.cfg.Duration > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, g.cfg.Duration)
		defer cancel()
	}

	var send sync.WaitGroup
	for _, s := range sessions {
		s := s
		send.Add(1)
		go func() {
			defer send.Done()
			g.stream(sendCtx, peer, s.id)
		}()
	}

	ticker := time.NewTicker(g.cfg.ReportInterval)
	defer ticker.Stop()
	sendDone := make(chan struct{})
	go func() {
		send.Wait()
		close(sendDone)
	}()

loop:
	for {
		select {
		case <-ticker.C:
			if onReport != nil {
				onReport(g.snapshot(start, false))
			}
		case <-sendDone:
			break loop
		}
	}

	if g.cfg.Drain > 0 {
		time.Sleep(g.cfg.Drain)
	}
	for _, s := range sessions {
		s.conn.Close()
	}
	recv.Wait()

	return g.snapshot(start, true), nil
}

func (g *Generator) openSessions() ([]session, error) {
	local := &net.UDPAddr{IP: net.IPv4zero}
	if ip := net.ParseIP(g.cfg.Relay); ip.IsLoopback() {
		local.IP = ip
	}
	client := net.UDPAddrFromAddrPort(g.cfg.clientAddr())
	sessions := make([]session, 0, g.cfg.Sessions)
	var announce [8]byte
	for i := 0; i < g.cfg.Sessions; i++ {
		conn, err := net.ListenUDP("udp4", local)
		if err != nil {
			return sessions, fmt.Errorf("session socket %d: %w", i, err)
		}
		s := session{id: rand.Uint64(), conn: conn}
		sessions = append(sessions, s)
		binary.BigEndian.PutUint64(announce[:], s.id)
		if _, err := conn.WriteToUDP(announce[:], client); err != nil {
			return sessions, fmt.Errorf("announce session %d: %w", i, err)
		}
	}
	return sessions, nil
}

// stream paces probes for one session into the peer port.
func (g *Generator) stream(ctx context.Context, peer *net.UDPConn, id uint64) {
	burst := int(g.pps)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(g.pps), burst)
	to := g.cfg.peerAddr()
	buf := make([]byte, g.size)
	for seq := uint64(1); ; seq++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		encodeProbe(buf, probe{session: id, seq: seq, sent: time.Now()})
		n, err := peer.WriteToUDPAddrPort(buf, to)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			g.log.Debug("probe send failed", logging.KeySession, id, logging.KeyError, err)
			continue
		}
		g.sent.Inc(1)
		g.up.Mark(int64(n))
	}
}

// receive accounts relayed probes until the session socket is closed.
func (g *Generator) receive(s session) {
	buf := make([]byte, MaxPacketSize)
	for {
		n, _, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		now := time.Now()
		g.down.Mark(int64(n))
		p, ok := decodeProbe(buf[:n])
		if !ok || p.session != s.id {
			g.invalid.Inc(1)
			continue
		}
		g.received.Inc(1)
		g.rtt.Update(now.Sub(p.sent).Microseconds())
	}
}

func (g *Generator) snapshot(start time.Time, final bool) Report {
	now := time.Now()
	up := g.up.Snapshot().Count()
	down := g.down.Snapshot().Count()
	interval := now.Sub(g.last.at)
	if final {
		interval = now.Sub(start)
	}

	r := Report{
		Elapsed:   now.Sub(start),
		Interval:  interval,
		Sent:      g.sent.Snapshot().Count(),
		Received:  g.received.Snapshot().Count(),
		Invalid:   g.invalid.Snapshot().Count(),
		UpBytes:   up,
		DownBytes: down,
		Final:     final,
	}
	if secs := interval.Seconds(); secs > 0 {
		if final {
			r.UpBps = float64(up) * 8 / secs
			r.DownBps = float64(down) * 8 / secs
		} else {
			r.UpBps = float64(up-g.last.upBytes) * 8 / secs
			r.DownBps = float64(down-g.last.downBytes) * 8 / secs
		}
	}
	h := g.rtt.Snapshot()
	if h.Count() > 0 {
		r.RTTMean = time.Duration(h.Mean()) * time.Microsecond
		r.RTTP50 = time.Duration(h.Percentile(0.5)) * time.Microsecond
		r.RTTP99 = time.Duration(h.Percentile(0.99)) * time.Microsecond
		r.RTTMax = time.Duration(h.Max()) * time.Microsecond
	}
	if final {
		r.Lost = r.InFlight()
	}

	g.last.at = now
	g.last.upBytes = up
	g.last.downBytes = down
	return r
}
