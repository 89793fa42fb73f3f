// Package server exposes the broker over HTTP: token issuance, status,
// clear, health and prometheus metrics, JSON in and out.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sufield/tokenbroker/internal/app"
	"github.com/sufield/tokenbroker/internal/config"
	"github.com/sufield/tokenbroker/internal/ports"
)

// Server wraps the HTTP listener. Timeouts come from configuration; the
// defaults guard against slow-client attacks on every phase of the request.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New wires the router and listener. gatherer feeds GET /metrics; audit
// receives records for request bodies rejected before they reach the broker.
func New(cfg config.Config, broker *app.Broker, audit ports.AuditSink, gatherer prometheus.Gatherer, clk clock.Clock, logger *slog.Logger) *Server {
	h := &handlers{
		broker:     broker,
		audit:      audit,
		clk:        clk,
		production: cfg.IsProduction(),
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/token", h.issue)
	r.Get("/token/status", h.status)
	r.Delete("/token", h.clear)
	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
		},
		logger: logger,
	}
}

// Handler returns the configured router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("broker listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
