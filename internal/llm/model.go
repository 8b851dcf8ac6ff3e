// Package llm defines the provider-agnostic model client used to service
// think external calls, plus the binding that resolves a role (heartbeat,
// subconscious) to a concrete provider, model, and rate limit.
package llm

import (
	"context"
	"errors"
)

// Request captures one completion call. Hexis think calls are single-turn:
// a system prompt framing the kind-specific output schema, plus one user
// prompt carrying the turn context and any think-call params. There is no
// tool-calling or streaming here, unlike a full chat-agent client, because
// tool_use external calls are serviced by the tool registry directly rather
// than by the model declaring a tool call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// TokenUsage mirrors the usage counters every provider reports in some form.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is the result of a non-streaming completion.
type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client is the provider-agnostic model client implemented by the
// anthropic/openai/bedrock adapters.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Callers should not retry in a tight loop.
var ErrRateLimited = errors.New("llm: rate limited")
