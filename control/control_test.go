package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/internal/config"
	"github.com/momentics/hioload-relay/internal/logging"
	"github.com/momentics/hioload-relay/internal/relay"
	"github.com/momentics/hioload-relay/internal/transport"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.PacketRead(api.ClientPort)
	m.PacketRead(api.PeerPort)
	m.PacketRead(api.PeerPort)
	m.PacketWritten(api.ClientPort)
	m.PacketDropped(api.PeerPort, api.DropUnknownSession)
	m.PacketDropped(api.PeerPort, api.DropUnknownSession)
	m.PacketDropped(api.ClientPort, api.DropShortPacket)

	if v := testutil.ToFloat64(m.read[api.PeerPort]); v != 2 {
		t.Errorf("peer read = %v", v)
	}
	if v := testutil.ToFloat64(m.DroppedVec.WithLabelValues("peer", "unknown_session")); v != 2 {
		t.Errorf("unknown_session drops = %v", v)
	}

	expected := `
# HELP hioload_relay_client_port_written_packets_total Datagrams queued for sending to client endpoints.
# TYPE hioload_relay_client_port_written_packets_total counter
hioload_relay_client_port_written_packets_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "hioload_relay_client_port_written_packets_total"); err != nil {
		t.Error(err)
	}
}

type staticStats relay.Stats

func (s staticStats) Stats() relay.Stats { return relay.Stats(s) }

func TestEngineCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	st := staticStats{
		Sessions: 5,
		Client: transport.Stats{
			Name:     "client",
			Received: 10,
			ReadPool: api.BufferPoolStats{Capacity: 8, Free: 7},
		},
		Peers: []transport.Stats{{Name: "peer-0", Sent: 4}},
	}
	reg.MustRegister(NewEngineCollector(st))

	expected := `
# HELP hioload_relay_sessions Registered sessions.
# TYPE hioload_relay_sessions gauge
hioload_relay_sessions 5
# HELP hioload_relay_transport_sent_total Datagrams sent by the outbound pump.
# TYPE hioload_relay_transport_sent_total counter
hioload_relay_transport_sent_total{transport="client"} 0
hioload_relay_transport_sent_total{transport="peer-0"} 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"hioload_relay_sessions", "hioload_relay_transport_sent_total"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(NewEngineCollector(st), "hioload_relay_pool_free_buffers"); n != 4 {
		t.Errorf("pool_free_buffers series = %d, want 4", n)
	}
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	dp.RegisterProbe("broken", func() any { panic("oops") })
	RegisterPlatformProbes(dp)

	state := dp.DumpState()
	if state["answer"] != 42 {
		t.Errorf("answer = %v", state["answer"])
	}
	if s, _ := state["broken"].(string); !strings.Contains(s, "oops") {
		t.Errorf("broken probe = %v", state["broken"])
	}
	if _, ok := state["platform.cpus"]; !ok {
		t.Error("platform probes missing")
	}
}

func TestServer_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.PacketRead(api.ClientPort)

	probes := NewDebugProbes()
	probes.RegisterProbe("sessions", func() any { return 3 })
	healthy := true
	srv := NewServer(ServerConfig{Address: "127.0.0.1:0"}, reg, probes, func() error {
		if healthy {
			return nil
		}
		return errors.New("peer-0: resource exhausted")
	}, logging.NopLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Shutdown(context.Background())
	base := "http://" + srv.Addr()

	body := get(t, base+"/metrics", http.StatusOK)
	if !strings.Contains(body, "hioload_relay_client_port_read_packets_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(get(t, base+"/debug/state", http.StatusOK)), &state); err != nil {
		t.Fatal(err)
	}
	if state["sessions"] != float64(3) {
		t.Errorf("debug state = %v", state)
	}

	get(t, base+"/healthz", http.StatusOK)
	healthy = false
	if body := get(t, base+"/healthz", http.StatusServiceUnavailable); !strings.Contains(body, "resource exhausted") {
		t.Errorf("unhealthy body = %s", body)
	}
}

func get(t *testing.T, url string, want int) string {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, want)
	}
	return string(b)
}

func TestReloader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	write := func(s string) {
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("log:\n  level: info\n")
	initial, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	store := NewConfigStore(initial)
	level := new(slog.LevelVar)
	store.OnReload(LevelReloadHook(level))

	r := NewReloader(path, store, logging.NopLogger())
	write("log:\n  level: debug\nrelay:\n  client_port: 4000\n")
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if store.Get().Log.Level != "debug" || level.Level().String() != "DEBUG" {
		t.Errorf("level not applied: %s / %s", store.Get().Log.Level, level.Level())
	}
	if got := RestartRequired(initial, store.Get()); len(got) != 1 || got[0] != "relay" {
		t.Errorf("RestartRequired = %v", got)
	}

	write("log:\n  level: shouting\n")
	if err := r.Reload(); err == nil {
		t.Fatal("invalid file must be rejected")
	}
	if store.Get().Log.Level != "debug" {
		t.Error("invalid reload replaced the active config")
	}
}
