// File: internal/relay/processor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"errors"
	"log/slog"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/internal/logging"
	"github.com/momentics/hioload-relay/internal/session"
	"github.com/momentics/hioload-relay/pool"
)

// Sender is the outbound half of a transport.
type Sender interface {
	AcquireWrite() (*pool.Buffer, bool)
	ReleaseWrite(*pool.Buffer) error
	Send(*pool.Buffer) error
}

// ClientProcessor registers sessions announced on the client port.
type ClientProcessor struct {
	dir      *session.Directory
	counters api.Counters
	log      *slog.Logger
}

// NewClientProcessor builds the client-port processor.
func NewClientProcessor(dir *session.Directory, counters api.Counters, log *slog.Logger) *ClientProcessor {
	return &ClientProcessor{dir: dir, counters: counters, log: log}
}

// ProcessPacket implements api.PacketProcessor.
func (p *ClientProcessor) ProcessPacket(payload []byte, from api.Endpoint) error {
	p.counters.PacketRead(api.ClientPort)
	id, ok := session.ParseID(payload)
	if !ok {
		p.counters.PacketDropped(api.ClientPort, api.DropShortPacket)
		return nil
	}
	if s, loaded := p.dir.GetOrCreate(id, from); !loaded {
		p.log.Debug("session created", logging.KeySession, id, logging.KeyRemote, s.Client.String())
	}
	return nil
}

// PeerProcessor forwards peer datagrams to the owning client through out.
type PeerProcessor struct {
	dir      *session.Directory
	out      Sender
	counters api.Counters
}

// NewPeerProcessor builds a peer-port processor that sends through out,
// normally the transport the processor is attached to.
func NewPeerProcessor(dir *session.Directory, out Sender, counters api.Counters) *PeerProcessor {
	return &PeerProcessor{dir: dir, out: out, counters: counters}
}

// ProcessPacket implements api.PacketProcessor. The whole datagram,
// session id included, is forwarded.
func (p *PeerProcessor) ProcessPacket(payload []byte, _ api.Endpoint) error {
	p.counters.PacketRead(api.PeerPort)
	id, ok := session.ParseID(payload)
	if !ok {
		p.counters.PacketDropped(api.PeerPort, api.DropShortPacket)
		return nil
	}
	s, ok := p.dir.TryGet(id)
	if !ok {
		p.counters.PacketDropped(api.PeerPort, api.DropUnknownSession)
		return nil
	}
	buf, ok := p.out.AcquireWrite()
	if !ok {
		p.counters.PacketDropped(api.PeerPort, api.DropNoBuffer)
		return nil
	}
	if !buf.Fill(payload) {
		if err := p.out.ReleaseWrite(buf); err != nil {
			return err
		}
		p.counters.PacketDropped(api.PeerPort, api.DropOversize)
		return nil
	}
	buf.SetEndpoint(s.Client)
	if err := p.out.Send(buf); err != nil {
		if errors.Is(err, api.ErrResourceExhausted) {
			p.counters.PacketDropped(api.PeerPort, api.DropQueueFull)
			return nil
		}
		return err
	}
	p.counters.PacketWritten(api.ClientPort)
	return nil
}

var (
	_ api.PacketProcessor = (*ClientProcessor)(nil)
	_ api.PacketProcessor = (*PeerProcessor)(nil)
)
