package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

var defaultThinkCosts = map[string]int{
	"brainstorm_goals":    5,
	"inquire_shallow":     3,
	"inquire_deep":        8,
	"reflect":             10,
	"termination_confirm": 0,
	"consent_request":     0,
	"rest":                0,
}

func (a *Adapter) thinkCosts(ctx context.Context) map[string]int {
	costs := make(map[string]int, len(defaultThinkCosts))
	for k, v := range defaultThinkCosts {
		costs[k] = v
	}
	raw, ok, err := a.GetConfig(ctx, "heartbeat.think_costs")
	if err != nil || !ok {
		return costs
	}
	var override map[string]int
	if err := jsonUnmarshal(raw, &override); err != nil {
		return costs
	}
	for k, v := range override {
		costs[k] = v
	}
	return costs
}

// StartHeartbeat atomically creates an in-flight heartbeat row and its
// initial think[heartbeat_decision] external call, per §4.A.
func (a *Adapter) StartHeartbeat(ctx context.Context) (StartHeartbeatResult, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return StartHeartbeatResult{}, xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)

	var hbID string
	if err := tx.QueryRow(ctx, `
		INSERT INTO heartbeats (actions_planned, actions_index, outcome)
		VALUES ('[]', 0, 'running') RETURNING id
	`).Scan(&hbID); err != nil {
		return StartHeartbeatResult{}, xerrors.Wrap("store.write_failed", err)
	}

	call, err := insertExternalCall(ctx, tx, CallThink, map[string]any{"kind": "heartbeat_decision"}, hbID)
	if err != nil {
		return StartHeartbeatResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return StartHeartbeatResult{}, xerrors.Wrap("store.commit_failed", err)
	}
	return StartHeartbeatResult{HeartbeatID: hbID, ExternalCalls: []ExternalCall{call}}, nil
}

func insertExternalCall(ctx context.Context, tx pgx.Tx, callType ExternalCallType, input map[string]any, heartbeatID string) (ExternalCall, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return ExternalCall{}, xerrors.Wrap("store.invalid_input", err)
	}
	var call ExternalCall
	var hbID *string
	if heartbeatID != "" {
		hbID = &heartbeatID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO external_calls (call_type, input, heartbeat_id)
		VALUES ($1, $2, $3)
		RETURNING id, call_type, input, status, retry_count, requested_at
	`, callType, raw, hbID).Scan(&call.ID, &call.CallType, &call.Input, &call.Status, &call.RetryCount, &call.RequestedAt)
	if err != nil {
		return ExternalCall{}, xerrors.Wrap("store.write_failed", err)
	}
	call.HeartbeatID = heartbeatID
	return call, nil
}

// ApplyHeartbeatDecision executes Decision.Actions starting at startIndex,
// stopping at the first action requiring an external call. Re-invoked with
// the returned NextIndex after the caller has serviced that call via the
// broker. Idempotent with respect to already-applied actions: the heartbeat
// row's stored actions_index is the source of truth and this call only
// advances it forward, never replays a completed action.
func (a *Adapter) ApplyHeartbeatDecision(ctx context.Context, heartbeatID string, decision Decision, startIndex int) (ApplyDecisionResult, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return ApplyDecisionResult{}, xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)

	var outcome HeartbeatOutcome
	var storedIndex int
	if err := tx.QueryRow(ctx, `SELECT outcome, actions_index FROM heartbeats WHERE id = $1 FOR UPDATE`, heartbeatID).
		Scan(&outcome, &storedIndex); err != nil {
		if err == pgx.ErrNoRows {
			return ApplyDecisionResult{}, xerrors.New(KindHeartbeatNotFound, heartbeatID)
		}
		return ApplyDecisionResult{}, xerrors.Wrap("store.query_failed", err)
	}
	if outcome != HeartbeatRunning {
		// Already finalized/terminated by a prior (possibly concurrent) call;
		// report completion without re-applying any side effect.
		return ApplyDecisionResult{Completed: outcome == HeartbeatFinalized, Terminated: outcome == HeartbeatTerminated, NextIndex: storedIndex}, nil
	}
	if startIndex < storedIndex {
		// Caller resumed from a stale index; advance to the durable one so
		// already-applied actions are never re-executed.
		startIndex = storedIndex
	}

	costs := a.thinkCosts(ctx)

	for i := startIndex; i < len(decision.Actions); i++ {
		action := decision.Actions[i]
		switch {
		case action.Action == "rest" || action.Action == "":
			continue
		case action.Action == "terminate":
			call, err := insertExternalCall(ctx, tx, CallThink, map[string]any{"kind": "termination_confirm", "proposal": action.Params}, heartbeatID)
			if err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := advanceIndex(ctx, tx, heartbeatID, i+1); err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := tx.Commit(ctx); err != nil {
				return ApplyDecisionResult{}, xerrors.Wrap("store.commit_failed", err)
			}
			return ApplyDecisionResult{PendingExternalCall: &call, NextIndex: i + 1}, nil
		case IsThinkAction(action.Action):
			input := map[string]any{"kind": action.Action}
			for k, v := range action.Params {
				input[k] = v
			}
			call, err := insertExternalCall(ctx, tx, CallThink, input, heartbeatID)
			if err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := chargeEnergy(ctx, tx, costs[action.Action]); err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := addEnergySpent(ctx, tx, heartbeatID, costs[action.Action]); err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := advanceIndex(ctx, tx, heartbeatID, i+1); err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := tx.Commit(ctx); err != nil {
				return ApplyDecisionResult{}, xerrors.Wrap("store.commit_failed", err)
			}
			return ApplyDecisionResult{PendingExternalCall: &call, NextIndex: i + 1}, nil
		case action.Action == "tool_use":
			toolName, _ := action.Params["tool_name"].(string)
			input := map[string]any{"tool_name": toolName, "arguments": action.Params["arguments"]}
			call, err := insertExternalCall(ctx, tx, CallToolUse, input, heartbeatID)
			if err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := advanceIndex(ctx, tx, heartbeatID, i+1); err != nil {
				return ApplyDecisionResult{}, err
			}
			if err := tx.Commit(ctx); err != nil {
				return ApplyDecisionResult{}, xerrors.Wrap("store.commit_failed", err)
			}
			return ApplyDecisionResult{PendingExternalCall: &call, NextIndex: i + 1}, nil
		default:
			// Unknown action verb: skip, matching the "unknown keys ignored"
			// posture used for think-call output schemas elsewhere in §4.D.
			continue
		}
	}

	// Reached the end of the action list: apply goal changes, finalize.
	for _, gc := range decision.GoalChanges {
		if err := applyGoalChange(ctx, tx, gc); err != nil {
			return ApplyDecisionResult{}, err
		}
	}
	var memoryID string
	if err := tx.QueryRow(ctx, `
		INSERT INTO memories (kind, category, content)
		VALUES ('heartbeat_summary', 'finalization', $1)
		RETURNING id
	`, decision.Reasoning).Scan(&memoryID); err != nil {
		return ApplyDecisionResult{}, xerrors.Wrap("store.write_failed", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE heartbeats SET outcome = 'finalized', actions_index = $2 WHERE id = $1
	`, heartbeatID, len(decision.Actions)); err != nil {
		return ApplyDecisionResult{}, xerrors.Wrap("store.write_failed", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE heartbeat_state SET last_heartbeat_at = now() WHERE id = TRUE`); err != nil {
		return ApplyDecisionResult{}, xerrors.Wrap("store.write_failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ApplyDecisionResult{}, xerrors.Wrap("store.commit_failed", err)
	}
	return ApplyDecisionResult{Completed: true, MemoryID: memoryID, NextIndex: len(decision.Actions), HaltReason: "completed"}, nil
}

func advanceIndex(ctx context.Context, tx pgx.Tx, heartbeatID string, next int) error {
	_, err := tx.Exec(ctx, `UPDATE heartbeats SET actions_index = $2 WHERE id = $1 AND actions_index < $2`, heartbeatID, next)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

func addEnergySpent(ctx context.Context, tx pgx.Tx, heartbeatID string, cost int) error {
	_, err := tx.Exec(ctx, `UPDATE heartbeats SET energy_spent = energy_spent + $2 WHERE id = $1`, heartbeatID, cost)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// chargeEnergy decrements current_energy, clamped to [0, max_energy] per the
// invariant in §3. Charging more than is available clamps to zero rather
// than erroring; the policy pipeline (component C) is responsible for
// refusing tool calls before they would overdraw energy.
func chargeEnergy(ctx context.Context, tx pgx.Tx, cost int) error {
	if cost == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE heartbeat_state
		SET current_energy = GREATEST(0, LEAST(max_energy, current_energy - $1))
		WHERE id = TRUE
	`, cost)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

func applyGoalChange(ctx context.Context, tx pgx.Tx, gc GoalChange) error {
	_, err := tx.Exec(ctx, `UPDATE goals SET status = $2 WHERE id = $1::uuid`, gc.GoalID, gc.Change)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// RunHeartbeat gates heartbeat creation on should_run_heartbeat and, when
// due, calls StartHeartbeat. Returns nil (no error) when not
// due, matching the "returned nothing -> sleep and continue" contract of
// the worker loop (§4.F).
func (a *Adapter) RunHeartbeat(ctx context.Context) (*StartHeartbeatResult, error) {
	configured, err := a.IsAgentConfigured(ctx)
	if err != nil {
		return nil, err
	}
	state, err := a.HeartbeatState(ctx)
	if err != nil {
		return nil, err
	}
	if !state.ShouldRunHeartbeat(configured, time.Now()) {
		return nil, nil
	}
	res, err := a.StartHeartbeat(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GatherTurnContext returns a JSON snapshot fed to the LLM ahead of a think
// call. The exact shape is a control-plane/model-contract concern left to
// the planner; here it is a minimal, cheap summary of energy/goals.
func (a *Adapter) GatherTurnContext(ctx context.Context) (json.RawMessage, error) {
	state, err := a.HeartbeatState(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := a.pool.Query(ctx, `SELECT title, priority, status FROM goals WHERE status = 'open' ORDER BY created_at DESC LIMIT 20`)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	defer rows.Close()
	type goalSummary struct {
		Title    string `json:"title"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
	}
	var goals []goalSummary
	for rows.Next() {
		var g goalSummary
		if err := rows.Scan(&g.Title, &g.Priority, &g.Status); err != nil {
			return nil, xerrors.Wrap("store.scan_failed", err)
		}
		goals = append(goals, g)
	}
	snapshot := map[string]any{
		"current_energy": state.CurrentEnergy,
		"max_energy":      state.MaxEnergy,
		"goals":           goals,
	}
	return json.Marshal(snapshot)
}

// GetSubconsciousContext returns a JSON snapshot fed to the subconscious
// decider LLM pass (§4.E).
func (a *Adapter) GetSubconsciousContext(ctx context.Context) (json.RawMessage, error) {
	rows, err := a.pool.Query(ctx, `SELECT kind, content FROM memories ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	defer rows.Close()
	type memSummary struct {
		Kind    string `json:"kind"`
		Content string `json:"content"`
	}
	var mems []memSummary
	for rows.Next() {
		var m memSummary
		if err := rows.Scan(&m.Kind, &m.Content); err != nil {
			return nil, xerrors.Wrap("store.scan_failed", err)
		}
		mems = append(mems, m)
	}
	return json.Marshal(map[string]any{"recent_memories": mems})
}
