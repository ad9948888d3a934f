// Package llm provides the generation client used by the pipeline.
//
// The client is a thin capability: given a system prompt, prior turns, and a
// user prompt, produce text with the model named by a registry id. It
// performs no retries; a failed call is a hard failure of the enclosing
// pipeline stage, and the pipeline's gate loop is the only retry budget.
package llm

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ragserve/ragserve/internal/config"
	"github.com/ragserve/ragserve/internal/log"
)

// Completer is the generation capability consumed by the pipeline.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request describes one generation call.
type Request struct {
	// ModelID names an entry of the global model registry.
	ModelID string

	// System is the stage's system prompt.
	System string

	// History holds prior conversation turns, oldest first. Empty for
	// gate, fix, and rewrite stages.
	History []Message

	// Prompt is the final user content (already template-rendered).
	Prompt string
}

// Client is the Genkit-backed Completer.
// All fields are read-only after construction; safe for concurrent use.
type Client struct {
	g       *genkit.Genkit
	cfg     *config.Config
	limiter *rate.Limiter
	logger  log.Logger
}

// New creates a generation client. A nil limiter installs the default
// (10 req/s sustained, burst of 30).
func New(g *genkit.Genkit, cfg *config.Config, limiter *rate.Limiter, logger log.Logger) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	return &Client{g: g, cfg: cfg, limiter: limiter, logger: logger}
}

// Complete runs one generation call. The configured stage timeout bounds the
// call; cancellation of ctx propagates immediately.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	spec, err := c.cfg.Model(req.ModelID)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.StageTimeout)
	defer cancel()

	messages := append(convertMessages(req.History),
		ai.NewMessage(ai.RoleUser, nil, ai.NewTextPart(req.Prompt)))

	opts := []ai.GenerateOption{
		ai.WithModelName(c.cfg.QualifiedModelName(spec)),
		ai.WithSystem(req.System),
		ai.WithMessages(messages...),
		c.generationConfig(spec),
	}

	resp, err := genkit.Generate(callCtx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generate with model %q: %w", req.ModelID, err)
	}

	c.logger.Debug("generation completed",
		"model_id", req.ModelID,
		"history_len", len(req.History),
		"response_len", len(resp.Text()))

	return resp.Text(), nil
}

// generationConfig maps the registry entry's temperature and token budget to
// the provider's config type. Gemini takes the genai request config; ollama
// and openai understand Genkit's common config.
func (c *Client) generationConfig(spec config.ModelSpec) ai.GenerateOption {
	if c.cfg.Provider == config.ProviderGemini {
		gc := &genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(spec.Temperature)),
		}
		if spec.MaxTokens > 0 {
			gc.MaxOutputTokens = int32(spec.MaxTokens)
		}
		return ai.WithConfig(gc)
	}

	cc := &ai.GenerationCommonConfig{Temperature: spec.Temperature}
	if spec.MaxTokens > 0 {
		cc.MaxOutputTokens = spec.MaxTokens
	}
	return ai.WithConfig(cc)
}

// convertMessages maps wire-format turns to Genkit messages.
// Unknown roles are skipped, matching the permissive wire handling at the
// HTTP boundary.
func convertMessages(history []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			out = append(out, ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart(m.Content)))
		case RoleUser:
			out = append(out, ai.NewMessage(ai.RoleUser, nil, ai.NewTextPart(m.Content)))
		case RoleAssistant:
			out = append(out, ai.NewMessage(ai.RoleModel, nil, ai.NewTextPart(m.Content)))
		}
	}
	return out
}
