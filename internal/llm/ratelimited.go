package llm

import (
	"context"

	"github.com/QuixiAI/Hexis/internal/ratelimit"
)

// RateLimited wraps a Client with a ratelimit.Limiter keyed by model name,
// so a think call waits for a budget slot before reaching the underlying
// provider. This is the `ratelimit.Wrap(client, limiter)` decorator: it lives
// here rather than in package ratelimit itself, since ratelimit has no
// business knowing about Client and importing it the other way around would
// create a cycle back into this package's provider adapters.
type RateLimited struct {
	next    Client
	limiter ratelimit.Limiter
}

// Wrap returns a Client that applies limiter before delegating to next. A
// nil limiter disables limiting entirely rather than panicking, since not
// every role configures a budget.
func Wrap(next Client, limiter ratelimit.Limiter) Client {
	if limiter == nil {
		return next
	}
	return &RateLimited{next: next, limiter: limiter}
}

// Complete waits for a rate limit slot keyed by the request's resolved
// model before delegating to the wrapped client.
func (r *RateLimited) Complete(ctx context.Context, req Request) (Response, error) {
	key := req.Model
	if key == "" {
		key = "default"
	}
	if err := r.limiter.Wait(ctx, key); err != nil {
		return Response{}, err
	}
	return r.next.Complete(ctx, req)
}

var _ Client = (*RateLimited)(nil)
