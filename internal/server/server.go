// Package server assembles the relay with its HTTP and QUIC listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/relay"
	"github.com/zeusync/coedit/internal/transport/quic"
)

// Server runs one relay session behind an HTTP listener and, when enabled,
// a QUIC listener.
type Server struct {
	config Config
	logger log.Log
	relay  *relay.Relay

	mu      sync.Mutex
	httpLn  net.Listener
	httpSrv *http.Server
	quicSrv *quic.Server
	running atomic.Bool
}

func NewServer(config Config, logger log.Log, r *relay.Relay) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		config: config,
		logger: logger.With(log.String("component", "server")),
		relay:  r,
	}, nil
}

// Listen binds every configured listener without serving yet.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLn != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("%w: http %s: %w", ErrListenerFailed, s.config.Listen, err)
	}
	if s.config.QUIC.Enabled {
		q := quic.NewServer(s.relay, s.config.QUIC.Config, s.logger)
		if err = q.Listen(); err != nil {
			_ = ln.Close()
			return fmt.Errorf("%w: quic %s: %w", ErrListenerFailed, s.config.QUIC.Addr, err)
		}
		s.quicSrv = q
	}
	s.httpLn = ln
	s.httpSrv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	return nil
}

// HTTPAddr is the bound HTTP address, nil before Listen.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// QUICAddr is the bound QUIC address, nil when QUIC is disabled.
func (s *Server) QUICAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quicSrv == nil {
		return nil
	}
	return s.quicSrv.Addr()
}

// Run serves until ctx is cancelled or a listener fails, then shuts every
// listener down and closes the relay session.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	defer s.running.Store(false)

	s.mu.Lock()
	httpLn, httpSrv, quicSrv := s.httpLn, s.httpSrv, s.quicSrv
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("HTTP listener started", log.String("addr", httpLn.Addr().String()))
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if quicSrv != nil {
		g.Go(func() error {
			return quicSrv.Serve(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(httpSrv)
	})

	err := g.Wait()
	s.logger.Info("Server stopped", log.Error(err))
	return err
}

func (s *Server) shutdown(httpSrv *http.Server) error {
	s.logger.Info("Shutting down")
	// ending sessions first closes hijacked websocket connections, which
	// http.Server.Shutdown does not track
	_ = s.relay.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
