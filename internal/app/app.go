// Package app wires configuration, the AI provider plugins, per-configuration
// retrieval indexes, and the pipeline registry into a runnable application.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/ragserve/ragserve/internal/config"
	"github.com/ragserve/ragserve/internal/llm"
	"github.com/ragserve/ragserve/internal/log"
	"github.com/ragserve/ragserve/internal/registry"
)

// App holds the initialized application components.
// All fields are ready for use after Setup returns.
type App struct {
	Config   *config.Config
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Client   *llm.Client
	Registry *registry.Registry
	Logger   log.Logger
}
