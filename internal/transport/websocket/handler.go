// Package websocket serves relay sessions over WebSocket text frames.
package websocket

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/relay"
)

// Hub is the part of the relay a transport drives.
type Hub interface {
	Join(peer relay.Peer) (*relay.Session, error)
	Handle(s *relay.Session, raw []byte) error
	Leave(s *relay.Session)
}

// Handler upgrades HTTP requests and pumps frames between the socket and a
// relay session.
type Handler struct {
	hub      Hub
	config   Config
	logger   log.Log
	upgrader websocket.Upgrader
}

func NewHandler(hub Hub, config Config, logger log.Log) *Handler {
	h := &Handler{
		hub:    hub,
		config: config,
		logger: logger.With(log.String("component", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: config.HandshakeTimeout,
		ReadBufferSize:   config.ReadBufferSize,
		WriteBufferSize:  config.WriteBufferSize,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.config.AllowedOrigins, r.Header.Get("Origin"))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		h.logger.Warn("WebSocket upgrade failed", log.Error(err), log.String("remote", r.RemoteAddr))
		return
	}

	c := newConnection(ws)
	s, err := h.hub.Join(c)
	if err != nil {
		h.logger.Error("Join failed", log.Error(err), log.String("remote", c.RemoteAddr()))
		_ = c.closeWith(websocket.CloseTryAgainLater, "relay unavailable", h.config.WriteTimeout)
		return
	}

	go h.writePump(c, s)
	go h.readPump(c, s)
}

func (h *Handler) readPump(c *connection, s *relay.Session) {
	defer func() {
		h.hub.Leave(s)
		_ = c.Close()
	}()

	if h.config.ReadLimit > 0 {
		c.ws.SetReadLimit(h.config.ReadLimit)
	}
	h.extendReadDeadline(c)
	c.ws.SetPongHandler(func(string) error {
		h.extendReadDeadline(c)
		return nil
	})

	for {
		data, err := c.receive()
		if err != nil {
			if websocket.IsUnexpectedCloseError(errors.Cause(err), websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Read failed", log.String("site", s.Site()), log.Error(err))
			}
			return
		}
		h.extendReadDeadline(c)
		// errors are accounted for by the relay; the connection stays open
		_ = h.hub.Handle(s, data)
	}
}

func (h *Handler) extendReadDeadline(c *connection) {
	if h.config.PongWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(h.config.PongWait))
	}
}

// writePump is the only goroutine writing data frames to c.
func (h *Handler) writePump(c *connection, s *relay.Session) {
	var tick <-chan time.Time
	if h.config.PingInterval > 0 {
		ticker := time.NewTicker(h.config.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() { _ = c.Close() }()

	for {
		select {
		case data, ok := <-s.Outbound():
			if !ok {
				// relay ended the session: left, evicted or shutting down
				_ = c.closeWith(websocket.CloseGoingAway, "session closed", h.config.WriteTimeout)
				return
			}
			if err := c.send(data, h.config.WriteTimeout); err != nil {
				h.logger.Debug("Write failed", log.String("site", s.Site()), log.Error(err))
				h.hub.Leave(s)
				return
			}
		case <-tick:
			if err := c.ping(h.config.WriteTimeout); err != nil {
				h.logger.Debug("Ping failed", log.String("site", s.Site()), log.Error(err))
				h.hub.Leave(s)
				return
			}
		}
	}
}
