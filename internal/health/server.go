package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridbot/internal/core"
)

// Server exposes the checker's report over HTTP alongside a Prometheus
// scrape endpoint, grounded on the teacher's
// internal/infrastructure/server.HealthServer (same /health, /metrics
// surface), adapted from the teacher's registered-check aggregation to
// wrapping a single Checker.
type Server struct {
	addr    string
	logger  core.Logger
	checker *Checker
	srv     *http.Server
}

// NewServer builds a health HTTP server bound to addr (e.g. ":8080").
func NewServer(addr string, logger core.Logger, checker *Checker) *Server {
	return &Server{addr: addr, logger: logger.With("component", "health_server"), checker: checker}
}

// Start begins serving in the background. Call Stop to shut it down.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		s.logger.Info("starting health server", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server failed", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.checker.Check()

	body := map[string]any{
		"ok":              report.OK,
		"warnings":        report.Warnings,
		"market_age_ms":    report.MarketAge.Milliseconds(),
		"position_age_ms":  report.PositionAge.Milliseconds(),
		"maintenance_age_ms": report.MaintenanceAge.Milliseconds(),
		"reconcile_age_ms": report.ReconcileAge.Milliseconds(),
		"time":            time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if !report.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(body)
}
