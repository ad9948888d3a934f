// Package pipeline sequences the prompt chain of one configuration:
// main-answer generation, ordered gate checks with a bounded fix/retry
// budget, and unconditional rewrite passes.
//
// A run is a value threaded through the stages, never shared state, so
// runs execute concurrently across the worker pool without coordination.
// Any generation failure aborts the whole run; gate exhaustion does not.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ragserve/ragserve/internal/config"
	"github.com/ragserve/ragserve/internal/llm"
	"github.com/ragserve/ragserve/internal/log"
)

var (
	// ErrEmptyConversation indicates a run with no conversation turns.
	ErrEmptyConversation = errors.New("conversation is empty")

	// ErrLastTurnNotUser indicates the final conversation turn is not a
	// user message.
	ErrLastTurnNotUser = errors.New("last conversation turn must be from the user")
)

// Orchestrator runs the prompt chain of one configuration.
// Read-only after construction; safe for concurrent use.
type Orchestrator struct {
	spec   config.PipelineSpec
	client llm.Completer
	logger log.Logger
}

// New creates an orchestrator for a validated pipeline spec.
func New(spec config.PipelineSpec, client llm.Completer, logger log.Logger) *Orchestrator {
	return &Orchestrator{spec: spec, client: client, logger: logger}
}

// Run executes the full chain and returns the final answer text.
//
// The last conversation turn's content is the question; earlier turns are
// passed to the main stage as history. Gates then re-check the current
// response for up to max_retries iterations: the first failing gate may
// apply its fix prompt, and whether or not it does, the iteration ends and
// the next one re-evaluates all gates against the (possibly fixed)
// response. If the budget runs out the current response proceeds anyway.
// Rewrites always run last, in order.
func (o *Orchestrator) Run(ctx context.Context, conversation []llm.Message, contextText string) (string, error) {
	if len(conversation) == 0 {
		return "", ErrEmptyConversation
	}
	last := conversation[len(conversation)-1]
	if last.Role != llm.RoleUser {
		return "", ErrLastTurnNotUser
	}

	question := last.Content
	history := conversation[:len(conversation)-1]

	current, err := o.client.Complete(ctx, llm.Request{
		ModelID: o.spec.Main.Model,
		System:  o.spec.Main.System,
		History: history,
		Prompt: renderTemplate(o.spec.Main.UserTemplate, map[string]string{
			"question": question,
			"context":  contextText,
		}),
	})
	if err != nil {
		return "", fmt.Errorf("main stage: %w", err)
	}

	current, err = o.runGateLoop(ctx, current)
	if err != nil {
		return "", err
	}

	for _, rw := range o.spec.Rewrites {
		out, err := o.client.Complete(ctx, llm.Request{
			ModelID: rw.Model,
			System:  rw.System,
			Prompt: renderTemplate(rw.UserTemplate, map[string]string{
				"response": current,
			}),
		})
		if err != nil {
			return "", fmt.Errorf("rewrite %q: %w", rw.Name, err)
		}
		current = out
	}

	return current, nil
}

// runGateLoop evaluates the gates for up to max_retries iterations and
// returns the (possibly fixed) response. Exhausting the budget is not an
// error.
func (o *Orchestrator) runGateLoop(ctx context.Context, current string) (string, error) {
	if len(o.spec.Gates) == 0 {
		return current, nil
	}

	for attempt := 1; attempt <= o.spec.MaxRetries; attempt++ {
		allPassed := true

		for _, gate := range o.spec.Gates {
			raw, err := o.client.Complete(ctx, llm.Request{
				ModelID: gate.Model,
				System:  gate.System,
				Prompt: renderTemplate(gate.UserTemplate, map[string]string{
					"response": current,
				}),
			})
			if err != nil {
				return "", fmt.Errorf("gate %q: %w", gate.Name, err)
			}

			v := parseVerdict(raw)
			if v.passed {
				continue
			}

			o.logger.Debug("gate rejected response",
				"gate", gate.Name,
				"attempt", attempt,
				"reason", v.reason)

			allPassed = false
			if gate.Fix != nil {
				fixed, err := o.client.Complete(ctx, llm.Request{
					ModelID: gate.Fix.Model,
					System:  gate.Fix.System,
					Prompt: renderTemplate(gate.Fix.UserTemplate, map[string]string{
						"response":      current,
						"reject_reason": v.reason,
					}),
				})
				if err != nil {
					return "", fmt.Errorf("fix for gate %q: %w", gate.Name, err)
				}
				current = fixed
			}

			// The next iteration re-evaluates all gates against the
			// updated response; remaining gates are skipped this round.
			break
		}

		if allPassed {
			return current, nil
		}
	}

	o.logger.Warn("gate retry budget exhausted, proceeding with current response",
		"max_retries", o.spec.MaxRetries)

	return current, nil
}

// renderTemplate substitutes {name} placeholders. Unknown placeholders are
// left verbatim so prompt typos are visible in the model input rather than
// silently erased.
func renderTemplate(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
