package relay

import "errors"

var (
	ErrRelayClosed  = errors.New("relay is closed")
	ErrUnknownPeer  = errors.New("peer is not joined")
	ErrPeerEvicted  = errors.New("peer evicted: outbound queue full")
	ErrInitFromPeer = errors.New("init messages are only sent by the relay")
	ErrNilPeer      = errors.New("nil peer")
)
