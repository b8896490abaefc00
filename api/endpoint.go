// File: api/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IPv4 endpoint value type shared by sockets, buffers and sessions.

package api

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Endpoint is an immutable IPv4 address/port pair. Addr is kept in host order,
// so 1.2.3.4 is 0x01020304. Two endpoints are equal iff both fields are equal.
type Endpoint struct {
	Addr uint32
	Port uint16
}

// EndpointFrom4 builds an Endpoint from the four address octets.
func EndpointFrom4(ip [4]byte, port uint16) Endpoint {
	return Endpoint{Addr: binary.BigEndian.Uint32(ip[:]), Port: port}
}

// EndpointFromAddrPort converts a netip.AddrPort. IPv4-mapped IPv6 addresses
// are unmapped; any other IPv6 address is rejected.
func EndpointFromAddrPort(ap netip.AddrPort) (Endpoint, error) {
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return Endpoint{}, fmt.Errorf("endpoint %s: %w", ap, ErrNotIPv4)
	}
	return EndpointFrom4(addr.As4(), ap.Port()), nil
}

// ParseEndpoint parses "a.b.c.d:port".
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	return EndpointFromAddrPort(ap)
}

// As4 returns the address octets in network order.
func (e Endpoint) As4() [4]byte {
	var ip [4]byte
	binary.BigEndian.PutUint32(ip[:], e.Addr)
	return ip
}

// AddrPort converts the endpoint to a netip.AddrPort.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(e.As4()), e.Port)
}

// IsZero reports whether the endpoint is the zero value.
func (e Endpoint) IsZero() bool { return e == Endpoint{} }

func (e Endpoint) String() string {
	ip := e.As4()
	return fmt.Sprintf("%d.%d.%d.%d:%d", ip[0], ip[1], ip[2], ip[3], e.Port)
}

// MarshalText renders the endpoint as "a.b.c.d:port".
func (e Endpoint) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText parses the MarshalText form.
func (e *Endpoint) UnmarshalText(b []byte) error {
	v, err := ParseEndpoint(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
