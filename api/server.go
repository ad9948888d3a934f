// Package api exposes the OpenAI-compatible HTTP surface of ragserve.
//
// Endpoints:
//
//	POST /v1/chat/completions  →  run retrieval + pipeline for a configuration
//	GET  /v1/models            →  list configuration names as models
//	GET  /health               →  liveness probe
//	GET  /ready                →  readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, logging, CORS)
//   - completions.go: chat completions endpoint (plain and SSE streaming)
//   - models.go: model listing endpoint
//   - health.go: health check endpoints
//   - response.go: JSON response helpers in the OpenAI error shape
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ragserve/ragserve/internal/config"
	"github.com/ragserve/ragserve/internal/log"
	"github.com/ragserve/ragserve/internal/registry"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Pipeline runs make many sequential model calls, so this is generous.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the ragserve API.
type Server struct {
	mux    *http.ServeMux
	cors   config.CORSConfig
	logger log.Logger

	// Handlers
	health      *HealthHandler
	models      *ModelsHandler
	completions *CompletionsHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg *config.Config, reg *registry.Registry, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:         mux,
		cors:        cfg.Server.CORS,
		logger:      logger,
		health:      NewHealthHandler(reg, logger),
		models:      NewModelsHandler(reg),
		completions: NewCompletionsHandler(reg, int64(cfg.Server.Workers), logger),
	}

	s.health.RegisterRoutes(mux)
	s.models.RegisterRoutes(mux)
	s.completions.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → CORS → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(s.cors),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
