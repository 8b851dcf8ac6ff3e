package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// IsAgentConfigured reports whether agent.is_configured is set and truthy.
func (a *Adapter) IsAgentConfigured(ctx context.Context) (bool, error) {
	configured, _, err := a.GetConfig(ctx, "agent.is_configured")
	if err != nil {
		return false, err
	}
	if configured == nil {
		return false, nil
	}
	var b bool
	if err := jsonUnmarshal(configured, &b); err != nil {
		return false, xerrors.Wrap("store.invalid_config", err)
	}
	return b, nil
}

// IsAgentTerminated reports whether terminate_agent has ever committed.
func (a *Adapter) IsAgentTerminated(ctx context.Context) (bool, error) {
	var terminated bool
	err := a.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM config WHERE key = 'agent.terminated_at')`).Scan(&terminated)
	if err != nil {
		return false, xerrors.Wrap("store.query_failed", err)
	}
	return terminated, nil
}

// HeartbeatState reads the singleton heartbeat_state row.
func (a *Adapter) HeartbeatState(ctx context.Context) (HeartbeatState, error) {
	var s HeartbeatState
	err := a.pool.QueryRow(ctx, `
		SELECT is_paused, current_energy, max_energy, base_regeneration, interval_minutes,
		       COALESCE(last_user_contact, 'epoch'), COALESCE(last_heartbeat_at, 'epoch')
		FROM heartbeat_state WHERE id = TRUE
	`).Scan(&s.IsPaused, &s.CurrentEnergy, &s.MaxEnergy, &s.BaseRegeneration, &s.IntervalMinutes,
		&s.LastUserContact, &s.LastHeartbeatAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return HeartbeatState{}, nil
		}
		return HeartbeatState{}, xerrors.Wrap("store.query_failed", err)
	}
	return s, nil
}

// MaintenanceState reads the singleton maintenance_state row.
func (a *Adapter) MaintenanceState(ctx context.Context) (MaintenanceState, error) {
	var s MaintenanceState
	err := a.pool.QueryRow(ctx, `
		SELECT is_paused, interval_seconds, COALESCE(last_run_at, 'epoch')
		FROM maintenance_state WHERE id = TRUE
	`).Scan(&s.IsPaused, &s.IntervalSeconds, &s.LastRunAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return MaintenanceState{}, nil
		}
		return MaintenanceState{}, xerrors.Wrap("store.query_failed", err)
	}
	return s, nil
}

// ShouldRunSubconsciousDecider reports whether the subconscious cadence is due.
func (a *Adapter) ShouldRunSubconsciousDecider(ctx context.Context) (bool, error) {
	var due bool
	err := a.pool.QueryRow(ctx, `
		SELECT COALESCE(
			now() - COALESCE(last_subconscious_run_at, 'epoch') >= make_interval(secs => subconscious_interval_seconds),
			TRUE
		) FROM maintenance_state WHERE id = TRUE
	`).Scan(&due)
	if err != nil {
		if err == pgx.ErrNoRows {
			return true, nil
		}
		return false, xerrors.Wrap("store.query_failed", err)
	}
	return due, nil
}

// MarkSubconsciousDeciderRun stamps last_subconscious_run_at regardless of outcome.
func (a *Adapter) MarkSubconsciousDeciderRun(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `UPDATE maintenance_state SET last_subconscious_run_at = now() WHERE id = TRUE`)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}
