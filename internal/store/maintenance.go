package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// MaintenanceStats is the non-nil result of a substrate maintenance pass,
// returned by RunMaintenanceIfDue when the cadence is due.
type MaintenanceStats struct {
	MemoriesPruned     int `json:"memories_pruned"`
	MemoriesConsolidated int `json:"memories_consolidated"`
	ScheduledTasksDue  int `json:"scheduled_tasks_due"`
}

// RunMaintenanceIfDue prunes low-trust memories older than 30 days when
// MaintenanceState's cadence has elapsed, and reports how many episodic
// memories are old enough to consolidate and how many scheduled tasks are
// due; it does not merge or rewrite any memory itself. It stamps
// last_run_at in the same transaction so a
// concurrent maintenance worker cannot double-run the pass. Returns nil
// (not an error) when the cadence is not yet due, matching run_maintenance_if_due's
// null-when-skipped contract in §4.E.
func (a *Adapter) RunMaintenanceIfDue(ctx context.Context) (*MaintenanceStats, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)

	var due bool
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(NOT is_paused AND (
			last_run_at IS NULL OR now() - last_run_at >= make_interval(secs => interval_seconds)
		), TRUE)
		FROM maintenance_state WHERE id = TRUE
	`).Scan(&due)
	if err != nil && err != pgx.ErrNoRows {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	if !due {
		return nil, nil
	}

	var pruned int
	err = tx.QueryRow(ctx, `
		WITH deleted AS (
			DELETE FROM memories
			WHERE trust < 0.05 AND created_at < now() - interval '30 days'
			RETURNING id
		)
		SELECT count(*) FROM deleted
	`).Scan(&pruned)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}

	var consolidated int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM memories WHERE kind = 'episodic' AND created_at < now() - interval '7 days'
	`).Scan(&consolidated)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}

	var tasksDue int
	err = tx.QueryRow(ctx, `SELECT count(*) FROM scheduled_tasks WHERE status = 'pending' AND due_at <= now()`).Scan(&tasksDue)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE maintenance_state SET last_run_at = now() WHERE id = TRUE`); err != nil {
		return nil, xerrors.Wrap("store.write_failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, xerrors.Wrap("store.tx_failed", err)
	}

	return &MaintenanceStats{MemoriesPruned: pruned, MemoriesConsolidated: consolidated, ScheduledTasksDue: tasksDue}, nil
}

// SubconsciousObservations is the decider's structured output, handed to
// ApplySubconsciousObservations (§4.E). Fields are opaque JSON blobs rather
// than typed structs since the decider's observation shapes are themselves
// evolving LLM output, not control-plane-owned state.
type SubconsciousObservations struct {
	NarrativeObservations     json.RawMessage `json:"narrative_observations"`
	RelationshipObservations  json.RawMessage `json:"relationship_observations"`
	ContradictionObservations json.RawMessage `json:"contradiction_observations"`
	EmotionalObservations     json.RawMessage `json:"emotional_observations"`
	ConsolidationObservations json.RawMessage `json:"consolidation_observations"`
}

// ApplySubconsciousObservations records a subconscious decider pass as a
// single memory row tagged kind='subconscious_observation', so later
// GetSubconsciousContext calls (which read recent memories) can surface it.
// The worker calls MarkSubconsciousDeciderRun separately regardless of
// whether this succeeds, per §4.E ("marks the run regardless of outcome").
func (a *Adapter) ApplySubconsciousObservations(ctx context.Context, obs SubconsciousObservations) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return xerrors.Wrap("store.invalid_input", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO memories (kind, category, content, metadata)
		VALUES ('subconscious_observation', 'maintenance', 'subconscious decider pass', $1)
	`, payload)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// PendingOutboxMessages returns up to limit outbox rows still awaiting
// delivery, oldest first, for the maintenance worker's flush step (§4.E
// step 5 / §4.F's outbox bridge).
func (a *Adapter) PendingOutboxMessages(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, kind, payload, status, created_at, sent_at, COALESCE(error_message, '')
		FROM outbox_messages WHERE status = 'pending'
		ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	defer rows.Close()

	var out []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.Kind, &m.Payload, &m.Status, &m.CreatedAt, &m.SentAt, &m.ErrorMessage); err != nil {
			return nil, xerrors.Wrap("store.scan_failed", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// MarkOutboxSent transitions the given outbox rows to sent, stamping sent_at.
func (a *Adapter) MarkOutboxSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := a.pool.Exec(ctx, `UPDATE outbox_messages SET status = 'sent', sent_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// MarkOutboxFailed transitions a single outbox row to failed, recording the
// delivery error so operators can inspect it via the CLI.
func (a *Adapter) MarkOutboxFailed(ctx context.Context, id string, errMsg string) error {
	_, err := a.pool.Exec(ctx, `UPDATE outbox_messages SET status = 'failed', error_message = $2 WHERE id = $1`, id, errMsg)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// EnqueueInboundMessage records an ingress message from the inbox bridge
// into working memory and bumps last_user_contact, per §4.F step 2.
func (a *Adapter) EnqueueInboundMessage(ctx context.Context, content string, metadata json.RawMessage) error {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO memories (kind, category, content, metadata)
		VALUES ('user_message', 'inbox', $1, $2)
	`, content, metadata)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE heartbeat_state SET last_user_contact = now() WHERE id = TRUE`); err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	return nil
}
