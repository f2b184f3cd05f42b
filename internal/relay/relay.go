// Package relay keeps the authoritative copy of the document and fans every
// accepted message out to the other connected replicas.
package relay

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/core/observability/metrics"
	"github.com/zeusync/coedit/internal/core/protocol"
)

// Options tune a Relay.
type Options struct {
	// QueueSize is the capacity of each peer's outbound queue.
	QueueSize int `yaml:"queue_size"`
}

func DefaultOptions() Options {
	return Options{QueueSize: 256}
}

// Relay coordinates one editing session.
type Relay struct {
	store   *Store
	logger  log.Log
	metrics *metrics.Metrics
	opts    Options

	nextSite atomic.Uint64
	closed   atomic.Bool
}

func New(logger log.Log, m *metrics.Metrics, opts Options) *Relay {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	if m == nil {
		m = metrics.New()
	}
	return &Relay{
		store:   NewStore(),
		logger:  logger.With(log.String("component", "relay")),
		metrics: m,
		opts:    opts,
	}
}

// Join registers a peer, assigns it a site id and queues the init message as
// the first thing the peer will receive.
func (r *Relay) Join(peer Peer) (*Session, error) {
	if peer == nil {
		return nil, ErrNilPeer
	}
	if r.closed.Load() {
		return nil, ErrRelayClosed
	}

	site := strconv.FormatUint(r.nextSite.Add(1), 10)
	s := newSession(peer, site, r.opts.QueueSize)

	st := r.store
	st.mu.Lock()
	data, err := protocol.Encode(st.initLocked(s))
	if err != nil {
		st.mu.Unlock()
		return nil, fmt.Errorf("encode init: %w", err)
	}
	s.out <- data
	s.joined = true
	st.peers[site] = s
	peers := len(st.peers)
	st.mu.Unlock()

	r.metrics.PeersConnected.Set(float64(peers))
	r.logger.Info("Peer joined",
		log.String("site", site),
		log.String("session", s.id),
		log.String("transport", peer.Transport()),
		log.String("remote", peer.RemoteAddr()),
		log.Int("peers", peers),
	)
	return s, nil
}

// Handle processes one raw message received from s. Messages that cannot be
// decoded or applied are dropped; the error is returned for the caller's
// information only and never requires closing the connection.
func (r *Relay) Handle(s *Session, raw []byte) error {
	msg, err := protocol.Decode(raw)
	if err != nil {
		reason := metrics.ReasonMalformed
		if errors.Is(err, protocol.ErrUnknownType) {
			reason = metrics.ReasonUnknownType
		}
		r.drop(s, reason, err)
		return err
	}

	switch m := msg.(type) {
	case *protocol.OperationMessage:
		return r.handleOperation(s, m, raw)
	case *protocol.Title:
		return r.handleTitle(s, m, raw)
	case *protocol.Cursor:
		return r.handleCursor(s, m)
	case *protocol.Init:
		r.drop(s, metrics.ReasonProtocol, ErrInitFromPeer)
		return ErrInitFromPeer
	default:
		err = fmt.Errorf("%w: %T", protocol.ErrUnknownType, msg)
		r.drop(s, metrics.ReasonUnknownType, err)
		return err
	}
}

func (r *Relay) handleOperation(s *Session, m *protocol.OperationMessage, raw []byte) error {
	st := r.store
	st.mu.Lock()
	if !s.joined {
		st.mu.Unlock()
		return ErrUnknownPeer
	}
	changed, err := st.applyLocked(m.Op)
	if err != nil {
		st.mu.Unlock()
		r.drop(s, metrics.ReasonRejected, err)
		return err
	}
	sent, evicted := st.broadcastLocked(raw, s)
	stats := st.statsLocked()
	st.mu.Unlock()

	r.metrics.MessagesApplied.WithLabelValues(string(m.Op.OpKind())).Inc()
	r.metrics.SequenceElements.Set(float64(stats.Elements))
	r.metrics.VisibleLength.Set(float64(stats.VisibleLength))
	r.afterBroadcast(sent, evicted, stats.Peers)

	if !changed {
		r.logger.Debug("Operation had no effect",
			log.String("site", s.site),
			log.String("op", string(m.Op.OpKind())),
		)
	}
	return nil
}

func (r *Relay) handleTitle(s *Session, m *protocol.Title, raw []byte) error {
	st := r.store
	st.mu.Lock()
	if !s.joined {
		st.mu.Unlock()
		return ErrUnknownPeer
	}
	st.title = m.Title
	sent, evicted := st.broadcastLocked(raw, s)
	peers := len(st.peers)
	st.mu.Unlock()

	r.metrics.MessagesApplied.WithLabelValues(string(protocol.KindTitle)).Inc()
	r.afterBroadcast(sent, evicted, peers)
	r.logger.Debug("Title changed", log.String("site", s.site), log.String("title", m.Title))
	return nil
}

// handleCursor stamps the sender's identity on the cursor and relays it.
// Cursors never touch the stored document.
func (r *Relay) handleCursor(s *Session, m *protocol.Cursor) error {
	stamped := *m
	stamped.UserID = s.site
	stamped.Color = s.color
	if stamped.Username == "" {
		stamped.Username = "User " + s.site
	}
	data, err := protocol.Encode(&stamped)
	if err != nil {
		r.drop(s, metrics.ReasonMalformed, err)
		return err
	}

	st := r.store
	st.mu.Lock()
	if !s.joined {
		st.mu.Unlock()
		return ErrUnknownPeer
	}
	sent, evicted := st.broadcastLocked(data, s)
	peers := len(st.peers)
	st.mu.Unlock()

	r.metrics.MessagesApplied.WithLabelValues(string(protocol.KindCursor)).Inc()
	r.afterBroadcast(sent, evicted, peers)
	return nil
}

func (r *Relay) afterBroadcast(sent int, evicted []*Session, peers int) {
	r.metrics.Broadcasts.Add(float64(sent))
	if len(evicted) == 0 {
		return
	}
	r.metrics.PeersEvicted.Add(float64(len(evicted)))
	r.metrics.PeersConnected.Set(float64(peers))
	for _, p := range evicted {
		r.logger.Warn("Peer evicted",
			log.String("site", p.site),
			log.String("session", p.id),
			log.Error(ErrPeerEvicted),
		)
	}
}

func (r *Relay) drop(s *Session, reason string, err error) {
	r.metrics.MessagesDropped.WithLabelValues(reason).Inc()
	r.logger.Debug("Message dropped",
		log.String("site", s.site),
		log.String("reason", reason),
		log.Error(err),
	)
}

// Leave unregisters s and closes its outbound queue. Calling it more than
// once, or after the peer was evicted, is a no-op.
func (r *Relay) Leave(s *Session) {
	if s == nil {
		return
	}
	st := r.store
	st.mu.Lock()
	removed := st.removeLocked(s)
	peers := len(st.peers)
	st.mu.Unlock()

	if !removed {
		return
	}
	r.metrics.PeersConnected.Set(float64(peers))
	r.logger.Info("Peer left", log.String("site", s.site), log.String("session", s.id), log.Int("peers", peers))
}

// Stats reports the current session state.
func (r *Relay) Stats() Stats {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.statsLocked()
}

// Metrics returns the collectors the relay reports to.
func (r *Relay) Metrics() *metrics.Metrics {
	return r.metrics
}

// Close rejects further joins and ends every session.
func (r *Relay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	st := r.store
	st.mu.Lock()
	for _, p := range st.peers {
		st.removeLocked(p)
	}
	st.mu.Unlock()
	r.metrics.PeersConnected.Set(0)
	r.logger.Info("Relay closed")
	return nil
}
