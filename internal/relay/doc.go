// Package relay
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session relay. Clients announce a session by sending any datagram whose
// first 8 bytes carry the session id (big-endian) to the client port; the
// first announcing endpoint owns the session. Peers send datagrams with the
// same header to the peer port and the relay forwards each one, unchanged,
// to the owning client from the peer socket that received it.
package relay
