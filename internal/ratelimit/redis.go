package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// RedisWindow is a fixed-window limiter backed by a shared Redis INCR
// counter, for deployments running more than one worker process against the
// same budget (TOOLS_RATE_LIMIT_BACKEND=redis with REDIS_URL set). A fixed window trades some
// burst tolerance at window boundaries for a single round trip per Wait
// call, which matches the other Redis-backed component in this tree
// (tools.configCache's shared-TTL cache) in spirit: simplicity over
// precision, since the budget here is a courtesy ceiling, not a billing
// meter.
type RedisWindow struct {
	client     *redis.Client
	limit      int64
	windowSecs int64
	prefix     string
}

// NewRedisWindow builds a limiter allowing up to limit operations per key
// within each windowSecs-second window.
func NewRedisWindow(client *redis.Client, limit int64, windowSecs int64, keyPrefix string) *RedisWindow {
	if keyPrefix == "" {
		keyPrefix = "hexis:ratelimit"
	}
	return &RedisWindow{client: client, limit: limit, windowSecs: windowSecs, prefix: keyPrefix}
}

// Wait increments key's counter for the current window and returns a
// KindLimited error at once when the count exceeds limit; it never blocks or
// sleeps. Unlike Keyed, this does not retry internally past a single check:
// callers that need to block past one window should loop with their own
// backoff, since a tight server-side retry loop would itself exceed the
// "one round trip" budget this backend keeps.
func (r *RedisWindow) Wait(ctx context.Context, key string) error {
	if r.limit <= 0 {
		return nil
	}
	windowKey := fmt.Sprintf("%s:%s:%d", r.prefix, key, clock().Unix()/max64(r.windowSecs, 1))

	count, err := r.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return xerrors.Wrap("ratelimit.backend_unavailable", err)
	}
	if count == 1 {
		r.client.Expire(ctx, windowKey, secondsToDuration(r.windowSecs))
	}
	if count > r.limit {
		return xerrors.Newf(KindLimited, "rate limit exceeded for %q (%d/%d per %ds)", key, count, r.limit, r.windowSecs)
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func secondsToDuration(secs int64) time.Duration {
	return time.Duration(secs) * time.Second
}

var _ Limiter = (*RedisWindow)(nil)
