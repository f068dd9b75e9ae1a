package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/paperlyzer/analysis-service/internal/database"
)

// Server exposes the latest diagnostic report and Prometheus metrics over
// HTTP for the -serve mode of the diagnostics CLI.
type Server struct {
	httpServer *http.Server
	db         *database.DB
	logger     zerolog.Logger

	mu     sync.RWMutex
	latest *Report
}

// NewServer creates the diagnostics HTTP server.
func NewServer(addr string, db *database.DB, metricsPath string, logger zerolog.Logger) *Server {
	s := &Server{
		db:     db,
		logger: logger.With().Str("component", "diagnostics-server").Logger(),
	}

	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	r.Get("/report", s.reportHandler)
	r.Method(http.MethodGet, metricsPath, promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetReport stores the most recent report for the /report endpoint.
func (s *Server) SetReport(report *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = report
}

// Start starts the HTTP listener and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("diagnostics server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on diagnostics address: %w", err)
	}
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if err := s.db.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = err.Error()
	}

	writeJSON(w, status, body)
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	report := s.latest
	s.mu.RUnlock()

	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report available yet"})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
