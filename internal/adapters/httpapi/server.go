// Package httpapi provides the status and metrics HTTP listener exposed
// during long render runs.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/tilery/internal/adapters/metrics"
	"github.com/jobrunner/tilery/internal/application"
)

// StatusSource supplies point-in-time run snapshots.
type StatusSource interface {
	Status() application.Status
}

// Server serves /status, /metrics and /healthz.
type Server struct {
	srv    *http.Server
	source StatusSource
	logger *slog.Logger
}

// NewServer creates the status server.
func NewServer(addr string, source StatusSource, logger *slog.Logger) *Server {
	s := &Server{source: source, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening in the background. Listener errors other than
// a clean shutdown are logged, not surfaced: the status endpoint is
// auxiliary and must never abort a render run.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server listening", "address", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server failed", "error", err)
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Status()); err != nil {
		s.logger.Error("writing status response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
