package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/ragserve/ragserve/internal/config"
	"github.com/ragserve/ragserve/internal/llm"
	"github.com/ragserve/ragserve/internal/log"
	"github.com/ragserve/ragserve/internal/pipeline"
	"github.com/ragserve/ragserve/internal/rag"
	"github.com/ragserve/ragserve/internal/registry"
)

// Options control application startup.
type Options struct {
	// Reindex forces a rebuild of every configuration's index even when
	// valid persisted state exists.
	Reindex bool
}

// Setup creates and initializes the application: Genkit with the configured
// provider, the embedder, the generation client, and one loaded retrieval
// index plus pipeline per configuration. All index builds complete before
// Setup returns, so the caller can start serving immediately.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger, opts Options) (*App, error) {
	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	client := llm.New(g, cfg, nil, logger.With("component", "llm"))

	reg, err := provideRegistry(ctx, cfg, embedder, client, logger, opts.Reindex)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Genkit:   g,
		Embedder: embedder,
		Client:   client,
		Registry: reg,
		Logger:   logger,
	}, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		// Several registry ids may share one underlying model name.
		seen := make(map[string]bool, len(cfg.Models))
		for _, spec := range cfg.Models {
			if seen[spec.Name] {
				continue
			}
			seen[spec.Name] = true
			ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
				Name: spec.Name,
				Type: "chat",
			}, nil)
		}
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"host", cfg.OllamaHost, "models", len(seen))
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider")
		return g, nil

	default: // "gemini"
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider")
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideRegistry loads every configuration's index and pairs it with its
// pipeline orchestrator. Builds run sequentially in name order: index
// building is single-threaded by design and must finish before traffic.
func provideRegistry(ctx context.Context, cfg *config.Config, embedder ai.Embedder, client llm.Completer, logger log.Logger, reindex bool) (*registry.Registry, error) {
	names := make([]string, 0, len(cfg.Configurations))
	for name := range cfg.Configurations {
		names = append(names, name)
	}
	sort.Strings(names)

	embed := rag.NewEmbeddingFunc(embedder)
	reg := registry.New()

	for _, name := range names {
		entry := cfg.Configurations[name]
		entryLogger := logger.With("configuration", name)

		index := rag.NewIndex(
			entry.DataDir,
			entry.Retrieval.ChunkSize,
			entry.Retrieval.Overlap(),
			embed,
			entryLogger,
		)
		if err := index.Load(ctx, reindex); err != nil {
			return nil, fmt.Errorf("loading index for configuration %q: %w", name, err)
		}

		service := rag.NewService(index, rag.Options{
			TopK:      entry.Retrieval.TopK,
			UseMMR:    entry.Retrieval.UseMMR,
			MMRFetchK: entry.Retrieval.MMRFetchK,
			MMRLambda: entry.Retrieval.Lambda(),
		}, entryLogger)

		orchestrator := pipeline.New(entry.Pipeline, client, entryLogger)

		if err := reg.Register(name, registry.Entry{
			Retrieval: service,
			Pipeline:  orchestrator,
		}); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
