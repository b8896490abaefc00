package relay

import (
	"bytes"
	"errors"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/momentics/hioload-relay/aio"
	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/fake"
)

func testEngineConfig(peers int) Config {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.ClientPort = 0
	cfg.PeerPort = 0
	cfg.PeerSockets = peers
	cfg.IncomingCPU = false
	cfg.Transport.BufferCount = 64
	cfg.Transport.MaxBackoff = 200 * time.Microsecond
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEngine_RelaysOverFakeNetwork(t *testing.T) {
	network := fake.NewNetwork()
	counters := newRecordingCounters()
	e, err := NewEngine(network, testEngineConfig(4), WithCounters(counters))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	if n := len(network.Group(e.PeerEndpoint().Port)); n != 4 {
		t.Fatalf("peer group has %d sockets", n)
	}

	client, _ := network.OpenSocket(aio.SocketConfig{})
	network.Inject(packet(77, ""), client.LocalEndpoint(), e.ClientEndpoint())
	waitFor(t, "session registration", func() bool {
		_, ok := e.Directory().TryGet(77)
		return ok
	})

	peers := []api.Endpoint{
		api.EndpointFrom4([4]byte{10, 9, 0, 1}, 1001),
		api.EndpointFrom4([4]byte{10, 9, 0, 2}, 1002),
		api.EndpointFrom4([4]byte{10, 9, 0, 3}, 1003),
	}
	for _, p := range peers {
		network.Inject(packet(77, "frame-from-"+p.String()), p, e.PeerEndpoint())
	}
	network.Inject(packet(78, "orphan"), peers[0], e.PeerEndpoint())

	// Collect what the client received.
	got := map[string]api.Endpoint{}
	buf := make([]byte, 1500)
	deadline := time.Now().Add(3 * time.Second)
	for len(got) < len(peers) && time.Now().Before(deadline) {
		client.SubmitReceive(0, buf)
		var out [1]aio.Completion
		if n, _ := client.WaitReceive(out[:], 100*time.Millisecond); n == 1 {
			got[string(buf[:out[0].N])] = out[0].From
		}
	}
	for _, p := range peers {
		from, ok := got[string(packet(77, "frame-from-"+p.String()))]
		if !ok {
			t.Fatalf("frame from %v not relayed", p)
		}
		if from != e.PeerEndpoint() {
			t.Fatalf("relayed from %v, want the peer port %v", from, e.PeerEndpoint())
		}
	}
	waitFor(t, "orphan drop", func() bool { return counters.drops(api.PeerPort, api.DropUnknownSession) == 1 })
	if st := e.Stats(); st.Sessions != 1 || len(st.Peers) != 4 {
		t.Fatalf("stats %+v", st)
	}
}

func TestEngine_SetupFailureClosesOpened(t *testing.T) {
	network := fake.NewNetwork()
	// Hold the peer port without SO_REUSEPORT so the group cannot form.
	blocker, _ := network.OpenSocket(aio.SocketConfig{Port: 3479})
	defer blocker.Close()

	cfg := testEngineConfig(2)
	cfg.PeerPort = 3479
	_, err := NewEngine(network, cfg)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrCodeSetup {
		t.Fatalf("expected setup error, got %v", err)
	}
	if !errors.Is(err, fake.ErrAddressInUse) {
		t.Fatalf("cause lost: %v", err)
	}
	// The client transport bound the first ephemeral port and must be gone.
	if n := len(network.Group(40000)); n != 0 {
		t.Fatalf("client socket leaked after failed setup: %d bound", n)
	}
}

func TestEngine_InvalidPeerSockets(t *testing.T) {
	cfg := testEngineConfig(0)
	if _, err := NewEngine(fake.NewNetwork(), cfg); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("zero peer sockets: %v", err)
	}
}

func TestEngine_UDPLoopback(t *testing.T) {
	peers := 1
	if runtime.GOOS == "linux" {
		peers = 2
	}
	e, err := NewEngine(aio.Default(), testEngineConfig(peers))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	clientAddr := net.UDPAddrFromAddrPort(e.ClientEndpoint().AddrPort())
	peerAddr := net.UDPAddrFromAddrPort(e.PeerEndpoint().AddrPort())

	if _, err := client.WriteToUDP(packet(0xfeedface, "hello"), clientAddr); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "session registration", func() bool {
		_, ok := e.Directory().TryGet(0xfeedface)
		return ok
	})

	want := packet(0xfeedface, "relayed-payload")
	if _, err := peer.WriteToUDP(want, peerAddr); err != nil {
		t.Fatal(err)
	}
	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1500)
	n, from, err := client.ReadFromUDPAddrPort(buf)
	if err != nil {
		t.Fatalf("relay did not deliver: %v", err)
	}
	if !bytes.Equal(buf[:n], want) {
		t.Fatalf("payload %q", buf[:n])
	}
	if from.Port() != e.PeerEndpoint().Port {
		t.Fatalf("relayed from port %d, want peer port %d", from.Port(), e.PeerEndpoint().Port)
	}
}
