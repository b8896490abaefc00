package api_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/momentics/hioload-relay/api"
)

func TestEndpointRoundTrip(t *testing.T) {
	ep := api.EndpointFrom4([4]byte{1, 2, 3, 4}, 5000)
	if ep.Addr != 0x01020304 {
		t.Fatalf("addr = %#x, want 0x01020304", ep.Addr)
	}
	if got := ep.String(); got != "1.2.3.4:5000" {
		t.Errorf("String() = %q", got)
	}
	back, err := api.EndpointFromAddrPort(ep.AddrPort())
	if err != nil {
		t.Fatal(err)
	}
	if back != ep {
		t.Errorf("round trip mismatch: %v != %v", back, ep)
	}
}

func TestEndpointEquality(t *testing.T) {
	a := api.EndpointFrom4([4]byte{10, 0, 0, 1}, 1)
	b := api.EndpointFrom4([4]byte{10, 0, 0, 1}, 2)
	if a == b {
		t.Error("endpoints with different ports compare equal")
	}
	if a != api.EndpointFrom4([4]byte{10, 0, 0, 1}, 1) {
		t.Error("identical endpoints compare unequal")
	}
}

func TestEndpointMappedAndV6(t *testing.T) {
	mapped := netip.AddrPortFrom(netip.MustParseAddr("::ffff:127.0.0.1"), 9)
	ep, err := api.EndpointFromAddrPort(mapped)
	if err != nil {
		t.Fatal(err)
	}
	if ep.String() != "127.0.0.1:9" {
		t.Errorf("mapped = %v", ep)
	}
	if _, err := api.ParseEndpoint("[2001:db8::1]:80"); !errors.Is(err, api.ErrNotIPv4) {
		t.Errorf("expected ErrNotIPv4, got %v", err)
	}
}

func TestEndpointText(t *testing.T) {
	ep := api.EndpointFrom4([4]byte{192, 168, 1, 7}, 3479)
	b, err := ep.MarshalText()
	if err != nil || string(b) != "192.168.1.7:3479" {
		t.Fatalf("MarshalText = %q, %v", b, err)
	}
	var back api.Endpoint
	if err := back.UnmarshalText(b); err != nil || back != ep {
		t.Errorf("UnmarshalText = %v, %v", back, err)
	}
	if err := back.UnmarshalText([]byte("nonsense")); err == nil {
		t.Error("bad text accepted")
	}
}
