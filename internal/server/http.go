package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/relay"
	"github.com/zeusync/coedit/internal/transport/websocket"
)

// Router builds the HTTP surface: the WebSocket endpoint, health and
// metrics, and optionally the static editor page.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Handle("/ws", websocket.NewHandler(s.relay, s.config.WebSocket, s.logger))
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.relay.Metrics().Handler()).Methods(http.MethodGet)
	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
	return r
}

type healthResponse struct {
	Status string `json:"status"`
	QUIC   bool   `json:"quic"`
	relay.Stats
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		QUIC:   s.config.QUIC.Enabled,
		Stats:  s.relay.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("Health response failed", log.Error(err))
	}
}
