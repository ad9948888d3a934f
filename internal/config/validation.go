package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrNoModels indicates the global model registry is empty.
	ErrNoModels = errors.New("no models configured")

	// ErrNoConfigurations indicates no RAG configurations are defined.
	ErrNoConfigurations = errors.New("no configurations defined")

	// ErrInvalidModelName indicates a model registry entry has no name.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates a temperature outside [0, 2].
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates a negative max token budget.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrMissingDataDir indicates a configuration without a data directory.
	ErrMissingDataDir = errors.New("missing data directory")

	// ErrInvalidChunking indicates chunk_overlap >= chunk_size or a
	// non-positive chunk size.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidTopK indicates a non-positive top_k.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMMR indicates mmr_fetch_k < 1 or mmr_lambda outside [0, 1].
	ErrInvalidMMR = errors.New("invalid MMR parameters")

	// ErrInvalidMaxRetries indicates max_retries outside [1, 10].
	ErrInvalidMaxRetries = errors.New("invalid max_retries")

	// ErrMissingPrompt indicates a prompt spec without a system prompt,
	// user template, or model id.
	ErrMissingPrompt = errors.New("incomplete prompt spec")

	// ErrInvalidPort indicates a port outside [1, 65535].
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidWorkers indicates a non-positive worker pool size.
	ErrInvalidWorkers = errors.New("invalid worker pool size")
)

// Validate checks the full configuration and returns the first violation.
// Called by Load; exported so tests and callers building Config by hand can
// fail fast too.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (must be one of: gemini, ollama, openai)", ErrInvalidProvider, c.Provider)
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if len(c.Models) == 0 {
		return ErrNoModels
	}
	for id, m := range c.Models {
		if err := validateModelSpec(id, m); err != nil {
			return err
		}
	}

	if len(c.Configurations) == 0 {
		return ErrNoConfigurations
	}
	for name, e := range c.Configurations {
		if err := c.validateEntry(name, e); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Server.Workers)
	}
	return nil
}

func validateModelSpec(id string, m ModelSpec) error {
	if m.Name == "" {
		return fmt.Errorf("%w: model %q has no name", ErrInvalidModelName, id)
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return fmt.Errorf("%w: model %q: must be between 0.0 and 2.0, got %.2f",
			ErrInvalidTemperature, id, m.Temperature)
	}
	if m.MaxTokens < 0 {
		return fmt.Errorf("%w: model %q: got %d", ErrInvalidMaxTokens, id, m.MaxTokens)
	}
	return nil
}

func (c *Config) validateEntry(name string, e Entry) error {
	if e.DataDir == "" {
		return fmt.Errorf("%w: configuration %q", ErrMissingDataDir, name)
	}

	r := e.Retrieval
	if r.ChunkSize < 1 {
		return fmt.Errorf("%w: configuration %q: chunk_size %d", ErrInvalidChunking, name, r.ChunkSize)
	}
	if ov := r.Overlap(); ov < 0 || ov >= r.ChunkSize {
		return fmt.Errorf("%w: configuration %q: overlap %d must be < chunk_size %d",
			ErrInvalidChunking, name, ov, r.ChunkSize)
	}
	if r.TopK < 1 {
		return fmt.Errorf("%w: configuration %q: top_k %d", ErrInvalidTopK, name, r.TopK)
	}
	if r.MMRFetchK < 1 {
		return fmt.Errorf("%w: configuration %q: mmr_fetch_k %d", ErrInvalidMMR, name, r.MMRFetchK)
	}
	if l := r.Lambda(); l < 0 || l > 1 {
		return fmt.Errorf("%w: configuration %q: mmr_lambda %.2f must be in [0, 1]",
			ErrInvalidMMR, name, l)
	}

	p := e.Pipeline
	if p.MaxRetries < 1 || p.MaxRetries > 10 {
		return fmt.Errorf("%w: configuration %q: got %d, must be in [1, 10]",
			ErrInvalidMaxRetries, name, p.MaxRetries)
	}

	if err := c.validatePrompt(name, "main_prompt", p.Main); err != nil {
		return err
	}
	for _, g := range p.Gates {
		stage := fmt.Sprintf("gate %q", g.Name)
		if err := c.validatePrompt(name, stage, PromptSpec{System: g.System, UserTemplate: g.UserTemplate, Model: g.Model}); err != nil {
			return err
		}
		if g.Fix != nil {
			if err := c.validatePrompt(name, stage+" fix_prompt", *g.Fix); err != nil {
				return err
			}
		}
	}
	for _, rw := range p.Rewrites {
		stage := fmt.Sprintf("rewrite %q", rw.Name)
		if err := c.validatePrompt(name, stage, PromptSpec{System: rw.System, UserTemplate: rw.UserTemplate, Model: rw.Model}); err != nil {
			return err
		}
	}

	return nil
}

// validatePrompt checks a prompt spec for completeness and that its model id
// resolves in the global registry.
func (c *Config) validatePrompt(entry, stage string, p PromptSpec) error {
	if p.System == "" || p.UserTemplate == "" || p.Model == "" {
		return fmt.Errorf("%w: configuration %q: %s", ErrMissingPrompt, entry, stage)
	}
	if _, ok := c.Models[p.Model]; !ok {
		return fmt.Errorf("%w: configuration %q: %s references %q", ErrUnknownModelRef, entry, stage, p.Model)
	}
	return nil
}
