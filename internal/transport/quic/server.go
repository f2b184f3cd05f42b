// Package quic serves relay sessions over QUIC. Each connection carries one
// bidirectional stream opened by the server; messages are length-prefixed
// JSON frames.
package quic

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/relay"
)

const (
	codeNoError        quic.ApplicationErrorCode = 0
	codeSessionClosed  quic.ApplicationErrorCode = 1
	codeRelayRefused   quic.ApplicationErrorCode = 2
	codeProtocolFailed quic.ApplicationErrorCode = 3
)

// Hub is the part of the relay a transport drives.
type Hub interface {
	Join(peer relay.Peer) (*relay.Session, error)
	Handle(s *relay.Session, raw []byte) error
	Leave(s *relay.Session)
}

type Server struct {
	hub    Hub
	config Config
	logger log.Log

	mu      sync.Mutex
	ln      *quic.Listener
	running atomic.Bool
}

func NewServer(hub Hub, config Config, logger log.Log) *Server {
	return &Server{
		hub:    hub,
		config: config,
		logger: logger.With(log.String("component", "quic")),
	}
}

// Listen binds the UDP socket. It is separate from Serve so callers can learn
// the bound address first.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return errors.New("quic server is already listening")
	}

	tlsConf, err := ServerTLSConfig(s.config)
	if err != nil {
		return err
	}
	ln, err := quic.ListenAddr(s.config.Addr, tlsConf, &quic.Config{
		MaxIdleTimeout:       s.config.IdleTimeout,
		KeepAlivePeriod:      s.config.KeepAlive,
		HandshakeIdleTimeout: s.config.HandshakeLimit,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start QUIC listener")
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is done or the listener is closed. It
// calls Listen if that has not happened yet.
func (s *Server) Serve(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("quic server is already running")
	}
	defer s.running.Store(false)

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	s.logger.Info("QUIC listener started", log.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "failed to accept QUIC connection")
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	if err := s.ln.Close(); err != nil && !errors.Is(err, quic.ErrServerClosed) {
		return errors.Wrap(err, "failed to close QUIC listener")
	}
	return nil
}

func (s *Server) handleConn(ctx context.Context, conn *quic.Conn) {
	c := &peer{conn: conn}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		s.logger.Debug("Open stream failed", log.String("remote", c.RemoteAddr()), log.Error(err))
		_ = conn.CloseWithError(codeProtocolFailed, "no stream")
		return
	}
	c.stream = stream

	sess, err := s.hub.Join(c)
	if err != nil {
		s.logger.Error("Join failed", log.String("remote", c.RemoteAddr()), log.Error(err))
		_ = conn.CloseWithError(codeRelayRefused, "relay unavailable")
		return
	}

	go s.writePump(c, sess)
	s.readPump(c, sess)
}

func (s *Server) readPump(c *peer, sess *relay.Session) {
	defer func() {
		s.hub.Leave(sess)
		_ = c.conn.CloseWithError(codeNoError, "")
	}()
	for {
		data, err := readFrame(c.stream, s.config.MaxFrameSize)
		if err != nil {
			s.logger.Debug("Read failed", log.String("site", sess.Site()), log.Error(err))
			return
		}
		_ = s.hub.Handle(sess, data)
	}
}

func (s *Server) writePump(c *peer, sess *relay.Session) {
	for data := range sess.Outbound() {
		if s.config.WriteTimeout > 0 {
			_ = c.stream.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		}
		if err := writeFrame(c.stream, data); err != nil {
			s.logger.Debug("Write failed", log.String("site", sess.Site()), log.Error(err))
			s.hub.Leave(sess)
			_ = c.conn.CloseWithError(codeProtocolFailed, "write failed")
			return
		}
	}
	// relay ended the session
	_ = c.stream.Close()
	_ = c.conn.CloseWithError(codeSessionClosed, "session closed")
}

var _ relay.Peer = (*peer)(nil)

type peer struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func (p *peer) Transport() string  { return "quic" }
func (p *peer) RemoteAddr() string { return p.conn.RemoteAddr().String() }
