package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/QuixiAI/Hexis/internal/store"
)

// systemPromptFor frames the JSON-only output contract for a think call kind.
// The heartbeat driver's coerceThinkOutput (internal/heartbeat) validates and
// falls back on a malformed reply, so this prompt only needs to bias the
// model toward emitting the right shape, not guarantee it.
func systemPromptFor(kind string) string {
	return fmt.Sprintf("You are the deliberation core of a persistent cognitive agent. "+
		"Respond to the %q think call with a single JSON object matching its documented schema "+
		"and nothing else: no prose, no markdown fences.", kind)
}

// NewThinkFunc builds the heartbeat driver's ThinkFunc (a function value, so
// internal/heartbeat never imports this package) over a Binding resolved to
// role. It formats the turn context and call params as the user prompt and
// returns the model's raw text as json.RawMessage for the driver to coerce.
//
// The returned closure has the exact shape of heartbeat.ThinkFunc:
// func(ctx, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error).
func NewThinkFunc(binding *Binding, role string) func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error) {
	return func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error) {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("llm: marshal think params: %w", err)
		}
		userPrompt := fmt.Sprintf("turn_context:\n%s\n\nparams:\n%s", turnContext, paramsJSON)

		resp, err := binding.Complete(ctx, role, Request{
			SystemPrompt: systemPromptFor(kind),
			UserPrompt:   userPrompt,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: think call %q: %w", kind, err)
		}
		return json.RawMessage(resp.Text), nil
	}
}

// NewDeciderFunc builds the maintenance scheduler's DeciderFunc (matching
// maintenance.DeciderFunc's exact shape) over a Binding resolved to the
// "subconscious" role, which itself falls back to "heartbeat" when
// unconfigured, per Binding.Resolve.
func NewDeciderFunc(binding *Binding) func(ctx context.Context, snapshot json.RawMessage) (store.SubconsciousObservations, error) {
	return func(ctx context.Context, snapshot json.RawMessage) (store.SubconsciousObservations, error) {
		resp, err := binding.Complete(ctx, "subconscious", Request{
			SystemPrompt: "You are the subconscious decider pass of a persistent cognitive agent. " +
				"Respond with a single JSON object with keys narrative_observations, relationship_observations, " +
				"contradiction_observations, emotional_observations, and consolidation_observations, each an " +
				"arbitrary JSON value capturing what you noticed. Respond with JSON only.",
			UserPrompt: fmt.Sprintf("context_snapshot:\n%s", snapshot),
		})
		if err != nil {
			return store.SubconsciousObservations{}, fmt.Errorf("llm: subconscious decider: %w", err)
		}
		var obs store.SubconsciousObservations
		if err := json.Unmarshal([]byte(resp.Text), &obs); err != nil {
			return store.SubconsciousObservations{}, fmt.Errorf("llm: parse subconscious observations: %w", err)
		}
		return obs, nil
	}
}
