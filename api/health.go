package api

import (
	"net/http"

	"github.com/ragserve/ragserve/internal/log"
	"github.com/ragserve/ragserve/internal/registry"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	registry *registry.Registry
	logger   log.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(reg *registry.Registry, logger log.Logger) *HealthHandler {
	return &HealthHandler{registry: reg, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness is a readiness probe endpoint.
// Ready once the registry holds at least one loaded configuration; indexes
// are loaded before the server starts, so registration implies readiness.
func (h *HealthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.registry == nil || len(h.registry.Names()) == 0 {
		h.logger.Warn("readiness check failed: no configurations registered")
		http.Error(w, "no configurations loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
