package broker

import (
	"context"
	"time"

	"github.com/QuixiAI/Hexis/internal/telemetry"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// Reaper resets processing rows that have sat past a staleness threshold
// back to pending, on the assumption the worker that claimed them crashed or
// was killed mid-flight. It is best-effort: a slow-but-alive worker can have
// its row reaped and will observe a failed commit (or a no-op ApplyResult,
// since the row is pending again) rather than any double side effect —
// ApplyExternalCallResult never runs until the transition out of processing
// succeeds.
type Reaper struct {
	pool       *Broker
	staleAfter time.Duration
	maxRetries int
	log        telemetry.Logger
}

// NewReaper constructs a Reaper over the given Broker. staleAfter of zero or
// less disables reaping (Sweep is then a no-op), matching the "off by
// default" requirement.
func NewReaper(b *Broker, staleAfter time.Duration, maxRetries int, log telemetry.Logger) *Reaper {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Reaper{pool: b, staleAfter: staleAfter, maxRetries: maxRetries, log: log}
}

// Sweep resets stale processing rows and returns how many were reaped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if r.staleAfter <= 0 {
		return 0, nil
	}

	rows, err := r.pool.pool.Query(ctx, `
		SELECT id FROM external_calls
		WHERE status = 'processing' AND started_at < now() - make_interval(secs => $1)
		FOR UPDATE SKIP LOCKED
	`, r.staleAfter.Seconds())
	if err != nil {
		return 0, xerrors.Wrap(KindQueryFailed, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, xerrors.Wrap(KindQueryFailed, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, xerrors.Wrap(KindQueryFailed, err)
	}

	reaped := 0
	for _, id := range ids {
		if err := r.pool.FailCall(ctx, id, "reaped: stale processing row", r.maxRetries, true); err != nil {
			r.log.Warn(ctx, "broker: failed to reap stale call", "call_id", id, "error", err.Error())
			continue
		}
		reaped++
	}
	if reaped > 0 {
		r.log.Info(ctx, "broker: reaped stale processing calls", "count", reaped)
	}
	return reaped, nil
}
