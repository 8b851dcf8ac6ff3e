// Package ratelimit provides the per-key rate limiters applied to the model
// clients' think-call dispatch (§4.M): an in-process token bucket per key by
// default, or a Redis-backed fixed window when a process fleet needs one
// shared budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

const KindLimited = "ratelimit.exceeded"

// Limiter grants or denies a unit of work identified by key, blocking up to
// ctx's deadline for a token to become available.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Keyed is an in-process limiter keeping one golang.org/x/time/rate bucket
// per key, created lazily on first use. This is the default backend
// (TOOLS_RATE_LIMIT_BACKEND not "redis", or no REDIS_URL), matching the per-host
// limiter already used by the web tool family and the shell concurrency
// throttle, generalized here to an arbitrary key space (model name, host,
// tool name) so both the LLM and tool layers can share one implementation.
type Keyed struct {
	ratePerSecond float64
	burst         int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewKeyed builds an in-process keyed limiter. Each key gets its own bucket
// refilling at ratePerSecond with the given burst capacity.
func NewKeyed(ratePerSecond float64, burst int) *Keyed {
	return &Keyed{ratePerSecond: ratePerSecond, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (k *Keyed) bucket(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(k.ratePerSecond), k.burst)
		k.limiters[key] = l
	}
	return l
}

// Wait blocks until a token for key is available or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	if err := k.bucket(key).Wait(ctx); err != nil {
		return xerrors.Wrap(KindLimited, err)
	}
	return nil
}

// NoopLimiter never throttles; the zero value of Keyed with a zero rate
// would instead block forever, so callers that want "no limiting" should
// use NoopLimiter explicitly rather than misconfiguring Keyed.
type NoopLimiter struct{}

func (NoopLimiter) Wait(ctx context.Context, key string) error { return ctx.Err() }

var _ Limiter = (*Keyed)(nil)
var _ Limiter = NoopLimiter{}

// clock exists only so tests can avoid real sleeps when exercising the
// Redis-backed window; production always uses time.Now.
var clock = time.Now
