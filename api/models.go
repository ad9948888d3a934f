package api

import (
	"net/http"
	"time"

	"github.com/ragserve/ragserve/internal/registry"
)

// modelInfo is one entry of the OpenAI model listing.
type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// modelList is the OpenAI model listing envelope.
type modelList struct {
	Object string      `json:"object"`
	Data   []modelInfo `json:"data"`
}

// ModelsHandler lists the registered configuration names as models, so
// OpenAI clients can discover what the gateway serves.
type ModelsHandler struct {
	registry *registry.Registry
	started  int64
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(reg *registry.Registry) *ModelsHandler {
	return &ModelsHandler{registry: reg, started: time.Now().Unix()}
}

// RegisterRoutes registers the model listing route on the given mux.
func (h *ModelsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/models", h.list)
}

func (h *ModelsHandler) list(w http.ResponseWriter, _ *http.Request) {
	names := h.registry.Names()
	data := make([]modelInfo, 0, len(names))
	for _, name := range names {
		data = append(data, modelInfo{
			ID:      name,
			Object:  "model",
			Created: h.started,
			OwnedBy: "ragserve",
		})
	}
	writeJSON(w, http.StatusOK, modelList{Object: "list", Data: data})
}
