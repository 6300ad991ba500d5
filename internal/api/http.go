// Package api exposes the engine's ambient HTTP surface: /healthz,
// /metrics, /snapshot, and /ws. Grounded on the teacher's
// internal/indengine/api.go startHTTP, generalized from a single /healthz
// route to the full ambient surface, with promhttp.Handler and the
// broadcast hub's WS upgrade mounted alongside it.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"metalindexd/internal/broadcast"
	"metalindexd/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the engine's HTTP surface on a single address.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer wires /healthz, /metrics, /snapshot, and /ws onto one mux.
func NewServer(addr string, health *metrics.HealthStatus, hub *broadcast.Hub) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)
	mux.HandleFunc("/snapshot", handleSnapshot(hub))
	mux.HandleFunc("/ws", hub.ServeWS)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func handleSnapshot(hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := hub.Snapshot()
		if !ok {
			http.Error(w, "no tick has completed yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] HTTP server listening on %s (/healthz, /metrics, /snapshot, /ws)", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
