// Package registry maps configuration names to their retrieval and
// pipeline instances. Entries are registered once at startup; lookups are
// read-only afterwards, so the registry needs no locking on the request
// path.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/ragserve/ragserve/internal/llm"
)

// ErrUnknownConfiguration indicates a lookup for a name never registered.
var ErrUnknownConfiguration = errors.New("unknown configuration")

// ContextProvider builds textual context for a query.
// *rag.Service is the production implementation.
type ContextProvider interface {
	GetContext(ctx context.Context, query string) (string, error)
}

// PipelineRunner executes the prompt chain for a conversation plus
// retrieved context. *pipeline.Orchestrator is the production
// implementation.
type PipelineRunner interface {
	Run(ctx context.Context, conversation []llm.Message, contextText string) (string, error)
}

// Entry pairs one configuration's retrieval service with its pipeline.
type Entry struct {
	Retrieval ContextProvider
	Pipeline  PipelineRunner
}

// Registry resolves configuration names. Not safe for concurrent
// registration; register everything before serving.
type Registry struct {
	entries map[string]Entry
	names   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a named configuration. Duplicate names are a wiring bug.
func (r *Registry) Register(name string, entry Entry) error {
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("configuration %q registered twice", name)
	}
	r.entries[name] = entry
	r.names = append(r.names, name)
	return nil
}

// Has reports whether a configuration name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Entry returns the named configuration's services.
func (r *Registry) Entry(name string) (Entry, error) {
	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownConfiguration, name)
	}
	return entry, nil
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
