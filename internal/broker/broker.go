// Package broker implements the external-call queue described in §4.B: a
// FOR UPDATE SKIP LOCKED dispatch protocol over the external_calls table so
// any number of worker processes can drain the same queue without
// double-executing a row.
package broker

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// SideEffectApplier is the narrow slice of store.Adapter the broker needs to
// commit a call's domain side effects inside the same transaction as its
// status transition. Defined here (rather than depending on *store.Adapter
// directly) so broker and store stay free of a circular import while still
// sharing the store.ExternalCall/AppliedSideEffects types.
type SideEffectApplier interface {
	ApplyExternalCallResult(ctx context.Context, tx pgx.Tx, call store.ExternalCall, output json.RawMessage) (store.AppliedSideEffects, error)
}

// Broker is the queue façade. It holds a pool directly (rather than a
// store.Adapter) because every operation here is a self-contained
// transaction against external_calls, never composed with store-package
// transactions from the outside.
type Broker struct {
	pool    *pgxpool.Pool
	effects SideEffectApplier
}

// New constructs a Broker. effects is typically the same *store.Adapter the
// rest of the control plane uses.
func New(pool *pgxpool.Pool, effects SideEffectApplier) *Broker {
	return &Broker{pool: pool, effects: effects}
}

func scanCall(row pgx.Row) (store.ExternalCall, error) {
	var c store.ExternalCall
	err := row.Scan(&c.ID, &c.CallType, &c.Input, &c.Status, &c.RetryCount, &c.HeartbeatID,
		&c.RequestedAt, &c.StartedAt, &c.CompletedAt, &c.Output, &c.ErrorMessage)
	return c, err
}

const callColumns = `id, call_type, input, status, retry_count, heartbeat_id,
	requested_at, started_at, completed_at, output, error_message`

// ClaimPendingCall selects the oldest pending row, skipping rows already
// locked by another worker, and atomically flips it to processing. Returns
// (nil, nil) when the queue is empty — claiming is idempotent on an empty
// queue.
func (b *Broker) ClaimPendingCall(ctx context.Context) (*store.ExternalCall, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, xerrors.Wrap(KindTxFailed, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE external_calls SET status = 'processing', started_at = now()
		WHERE id = (
			SELECT id FROM external_calls
			WHERE status = 'pending'
			ORDER BY requested_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+callColumns)
	call, err := scanCall(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, xerrors.Wrap(KindQueryFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, xerrors.Wrap(KindTxFailed, err)
	}
	return &call, nil
}

// ClaimCallByID performs the same transition targeted at one id. Returns
// (nil, nil) if the row is not currently pending (already claimed,
// completed, or failed).
func (b *Broker) ClaimCallByID(ctx context.Context, id string) (*store.ExternalCall, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, xerrors.Wrap(KindTxFailed, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE external_calls SET status = 'processing', started_at = now()
		WHERE id = $1::uuid AND status = 'pending'
		RETURNING `+callColumns, id)
	call, err := scanCall(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, xerrors.Wrap(KindQueryFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, xerrors.Wrap(KindTxFailed, err)
	}
	return &call, nil
}

// ApplyResult writes output, marks the call complete, and runs its domain
// side effect in the same transaction, per §4.B invariant 2. Re-invoking
// with the same call id after the first success is a no-op: the row is no
// longer processing, so the WHERE clause matches nothing and effects is
// never called a second time.
func (b *Broker) ApplyResult(ctx context.Context, id string, output json.RawMessage) (store.AppliedSideEffects, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return store.AppliedSideEffects{}, xerrors.Wrap(KindTxFailed, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+callColumns+` FROM external_calls WHERE id = $1::uuid AND status = 'processing' FOR UPDATE`, id)
	call, err := scanCall(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.AppliedSideEffects{}, xerrors.New(KindNotClaimable, "call is not in processing state")
		}
		return store.AppliedSideEffects{}, xerrors.Wrap(KindQueryFailed, err)
	}

	effects, err := b.effects.ApplyExternalCallResult(ctx, tx, call, output)
	if err != nil {
		return store.AppliedSideEffects{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE external_calls SET status = 'complete', output = $2, completed_at = now() WHERE id = $1::uuid
	`, id, output); err != nil {
		return store.AppliedSideEffects{}, xerrors.Wrap(KindWriteFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return store.AppliedSideEffects{}, xerrors.Wrap(KindTxFailed, err)
	}
	return effects, nil
}

// FailCall implements the retry/dead-letter transition. When retry is true
// and retry_count is still below maxRetries the row returns to pending with
// retry_count incremented and started_at cleared so it can be reclaimed;
// otherwise it is marked failed with errMsg.
func (b *Broker) FailCall(ctx context.Context, id string, errMsg string, maxRetries int, retry bool) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap(KindTxFailed, err)
	}
	defer tx.Rollback(ctx)

	var retryCount int
	var status store.ExternalCallStatus
	if err := tx.QueryRow(ctx, `SELECT retry_count, status FROM external_calls WHERE id = $1::uuid FOR UPDATE`, id).Scan(&retryCount, &status); err != nil {
		if err == pgx.ErrNoRows {
			return xerrors.New(KindNotFound, "external call not found")
		}
		return xerrors.Wrap(KindQueryFailed, err)
	}
	if status != store.StatusProcessing {
		// Already resolved by another worker (or the reaper) between the
		// caller observing a failure and this transaction starting; treat as
		// a no-op rather than clobbering a concurrent outcome.
		return nil
	}

	if shouldRetry(retryCount, maxRetries, retry) {
		if _, err := tx.Exec(ctx, `
			UPDATE external_calls
			SET status = 'pending', retry_count = retry_count + 1, started_at = NULL, error_message = $2
			WHERE id = $1::uuid
		`, id, errMsg); err != nil {
			return xerrors.Wrap(KindWriteFailed, err)
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE external_calls SET status = 'failed', error_message = $2, completed_at = now() WHERE id = $1::uuid
		`, id, errMsg); err != nil {
			return xerrors.Wrap(KindWriteFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap(KindTxFailed, err)
	}
	return nil
}

// shouldRetry is the pure decision rule behind FailCall's branch, split out
// so the retry/dead-letter boundary can be property-tested without a
// database.
func shouldRetry(retryCount, maxRetries int, retry bool) bool {
	return retry && retryCount < maxRetries
}
