// Package config provides application configuration management.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (YAML or JSON, --config flag or ./ragserve.yaml)
//  3. Default values
//
// Main categories:
//   - Provider: AI provider selection and embedder model
//   - Server: bind address, worker pool size, CORS
//   - Models: global model registry (id -> name/temperature/max tokens)
//   - Configurations: named RAG configurations, each owning a data
//     directory, retrieval settings, and a pipeline prompt chain
//
// Error handling uses sentinel errors for errors.Is checks; see
// validation.go for the full set of range checks.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Genkit provider prefixes for qualified model names.
const (
	prefixGoogleAI = "googleai"
	prefixOllama   = "ollama"
	prefixOpenAI   = "openai"
)

// Defaults applied to configuration entries that omit retrieval or
// pipeline settings.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultTopK         = 5
	DefaultMMRFetchK    = 10
	DefaultMMRLambda    = 0.5
	DefaultMaxRetries   = 2
	DefaultWorkers      = 8
	DefaultStageTimeout = 2 * time.Minute
)

// Config stores the full application configuration.
type Config struct {
	// AI provider configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama", "openai"
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// StageTimeout bounds each individual LLM call inside a pipeline run.
	StageTimeout time.Duration `mapstructure:"stage_timeout" json:"stage_timeout"`

	Server ServerConfig `mapstructure:"server" json:"server"`

	// Models is the global model registry. Prompt specs reference entries
	// by id; the generation client resolves id -> provider model name.
	Models map[string]ModelSpec `mapstructure:"models" json:"models"`

	// Configurations maps a configuration name (the OpenAI "model" request
	// field) to its retrieval and pipeline settings.
	Configurations map[string]Entry `mapstructure:"configurations" json:"configurations"`
}

// ModelSpec describes one entry of the global model registry.
type ModelSpec struct {
	Name        string  `mapstructure:"name" json:"name"`
	Temperature float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string     `mapstructure:"host" json:"host"`
	Port    int        `mapstructure:"port" json:"port"`
	Workers int        `mapstructure:"workers" json:"workers"`
	CORS    CORSConfig `mapstructure:"cors" json:"cors"`
}

// Addr returns the host:port bind address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CORSConfig holds cross-origin settings for the HTTP layer.
type CORSConfig struct {
	Origins     []string `mapstructure:"origins" json:"origins"`
	Methods     []string `mapstructure:"methods" json:"methods"`
	Headers     []string `mapstructure:"headers" json:"headers"`
	Credentials bool     `mapstructure:"credentials" json:"credentials"`
}

// Entry is one named RAG configuration.
type Entry struct {
	DataDir   string        `mapstructure:"data_dir" json:"data_dir"`
	Retrieval RetrievalSpec `mapstructure:"retrieval" json:"retrieval"`
	Pipeline  PipelineSpec  `mapstructure:"pipeline" json:"pipeline"`
}

// RetrievalSpec holds chunking and search settings for one configuration.
// ChunkOverlap and MMRLambda are pointers so an absent key can be defaulted
// while an explicit 0 (no overlap, maximum diversity) is preserved.
type RetrievalSpec struct {
	ChunkSize    int      `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap *int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK         int      `mapstructure:"top_k" json:"top_k"`
	UseMMR       bool     `mapstructure:"use_mmr" json:"use_mmr"`
	MMRFetchK    int      `mapstructure:"mmr_fetch_k" json:"mmr_fetch_k"`
	MMRLambda    *float64 `mapstructure:"mmr_lambda" json:"mmr_lambda"`
}

// Overlap returns the chunk overlap with the default applied. The default
// does not depend on chunk_size; tuning only the window keeps overlap 50.
func (r RetrievalSpec) Overlap() int {
	if r.ChunkOverlap == nil {
		return DefaultChunkOverlap
	}
	return *r.ChunkOverlap
}

// Lambda returns the MMR lambda value with the default applied.
func (r RetrievalSpec) Lambda() float64 {
	if r.MMRLambda == nil {
		return DefaultMMRLambda
	}
	return *r.MMRLambda
}

// PipelineSpec describes the prompt chain of one configuration.
type PipelineSpec struct {
	Main       PromptSpec    `mapstructure:"main_prompt" json:"main_prompt"`
	Gates      []GateSpec    `mapstructure:"gate_prompts" json:"gate_prompts"`
	Rewrites   []RewriteSpec `mapstructure:"rewrite_prompts" json:"rewrite_prompts"`
	MaxRetries int           `mapstructure:"max_retries" json:"max_retries"`
}

// PromptSpec is a single prompt stage: system prompt, user prompt template,
// and the model registry id to run it with. Templates use {question},
// {context}, {response} and {reject_reason} placeholders depending on stage.
type PromptSpec struct {
	System       string `mapstructure:"system_prompt" json:"system_prompt"`
	UserTemplate string `mapstructure:"user_prompt_template" json:"user_prompt_template"`
	Model        string `mapstructure:"model" json:"model"`
}

// GateSpec is a pass/fail quality check with an optional fix prompt applied
// when the gate rejects a response.
type GateSpec struct {
	Name         string      `mapstructure:"name" json:"name"`
	System       string      `mapstructure:"system_prompt" json:"system_prompt"`
	UserTemplate string      `mapstructure:"user_prompt_template" json:"user_prompt_template"`
	Model        string      `mapstructure:"model" json:"model"`
	Fix          *PromptSpec `mapstructure:"fix_prompt" json:"fix_prompt"`
}

// RewriteSpec is an unconditional post-processing stage.
type RewriteSpec struct {
	Name         string `mapstructure:"name" json:"name"`
	System       string `mapstructure:"system_prompt" json:"system_prompt"`
	UserTemplate string `mapstructure:"user_prompt_template" json:"user_prompt_template"`
	Model        string `mapstructure:"model" json:"model"`
}

// Load reads configuration from the given file path. An empty path searches
// for ragserve.{yaml,json} in the current directory.
// The result is validated immediately (fail-fast).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ragserve")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("stage_timeout", DefaultStageTimeout)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.workers", DefaultWorkers)
	v.SetDefault("server.cors.methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.headers", []string{"Content-Type", "Authorization"})
}

// bindEnvVariables binds runtime override variables explicitly.
// Provider API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by
// the Genkit plugins, not via Viper.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "RAGSERVE_PROVIDER")
	mustBind("ollama_host", "RAGSERVE_OLLAMA_HOST")
	mustBind("embedder_model", "RAGSERVE_EMBEDDER_MODEL")
	mustBind("server.host", "RAGSERVE_HOST")
	mustBind("server.port", "RAGSERVE_PORT")
	mustBind("server.workers", "RAGSERVE_WORKERS")
}

// applyDefaults fills per-entry defaults that Viper cannot express for map
// values (SetDefault has no reach into configuration entries).
func (c *Config) applyDefaults() {
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.Server.Workers == 0 {
		c.Server.Workers = DefaultWorkers
	}

	for name, e := range c.Configurations {
		if e.Retrieval.ChunkSize == 0 {
			e.Retrieval.ChunkSize = DefaultChunkSize
		}
		if e.Retrieval.TopK == 0 {
			e.Retrieval.TopK = DefaultTopK
		}
		if e.Retrieval.MMRFetchK == 0 {
			e.Retrieval.MMRFetchK = DefaultMMRFetchK
		}
		if e.Pipeline.MaxRetries == 0 {
			e.Pipeline.MaxRetries = DefaultMaxRetries
		}
		c.Configurations[name] = e
	}
}

// QualifiedModelName returns the provider-qualified Genkit model name for a
// model registry entry, e.g. "googleai/gemini-2.5-flash" or "ollama/llama3.3".
func (c *Config) QualifiedModelName(spec ModelSpec) string {
	switch c.Provider {
	case ProviderOllama:
		return prefixOllama + "/" + spec.Name
	case ProviderOpenAI:
		return prefixOpenAI + "/" + spec.Name
	default:
		return prefixGoogleAI + "/" + spec.Name
	}
}

// Model resolves a model registry id.
func (c *Config) Model(id string) (ModelSpec, error) {
	spec, ok := c.Models[id]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %q", ErrUnknownModelRef, id)
	}
	return spec, nil
}

// ErrUnknownModelRef indicates a prompt spec references a model id absent
// from the global model registry.
var ErrUnknownModelRef = errors.New("unknown model id")
