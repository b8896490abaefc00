// File: internal/session/session.go
// Author: momentics <momentics@gmail.com>

package session

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-relay/api"
)

// Session binds a session id to the client endpoint that created it.
type Session struct {
	ID     uint64       `json:"id"`
	Client api.Endpoint `json:"client"`
}

// String renders the session for logs and debug dumps.
func (s Session) String() string {
	return fmt.Sprintf("%016x@%s", s.ID, s.Client)
}

// ParseID decodes the big-endian session id at the head of a datagram.
// It reports false for datagrams shorter than api.SessionIDSize.
func ParseID(payload []byte) (uint64, bool) {
	if len(payload) < api.SessionIDSize {
		return 0, false
	}
	return binary.BigEndian.Uint64(payload[:api.SessionIDSize]), true
}

// PutID writes id big-endian into the first api.SessionIDSize bytes of dst.
func PutID(dst []byte, id uint64) {
	binary.BigEndian.PutUint64(dst[:api.SessionIDSize], id)
}
