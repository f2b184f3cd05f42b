package relay

import (
	"github.com/google/uuid"
)

// Peer is the transport side of a connection.
type Peer interface {
	// Transport names the carrier, e.g. "websocket" or "quic".
	Transport() string
	RemoteAddr() string
}

// Session is one joined peer. The transport drains Outbound in its write
// pump; the relay closes the channel when the peer leaves or is evicted.
type Session struct {
	id    string
	site  string
	color string
	peer  Peer
	out   chan []byte

	// guarded by Store.mu
	joined bool
}

func newSession(peer Peer, site string, queueSize int) *Session {
	return &Session{
		id:    uuid.NewString(),
		site:  site,
		color: colorFor(site),
		peer:  peer,
		out:   make(chan []byte, queueSize),
	}
}

// ID is a connection identifier used in logs.
func (s *Session) ID() string { return s.id }

// Site is the site identifier assigned to the replica behind this session.
func (s *Session) Site() string { return s.site }

func (s *Session) Color() string { return s.color }

func (s *Session) Peer() Peer { return s.peer }

// Outbound yields encoded messages for the peer, starting with init. It is
// closed once the session ends.
func (s *Session) Outbound() <-chan []byte { return s.out }
