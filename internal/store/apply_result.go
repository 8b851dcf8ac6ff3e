package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// ApplyExternalCallResult runs the domain side effect declared for call's
// kind and returns what happened, per §4.A/§4.B. It must run inside the same
// transaction as the status transition pending->complete so invariant 2 of
// §8 holds; the broker package is responsible for opening that transaction
// and calling this method before committing.
func (a *Adapter) ApplyExternalCallResult(ctx context.Context, tx pgx.Tx, call ExternalCall, output json.RawMessage) (AppliedSideEffects, error) {
	var effects AppliedSideEffects
	effects.Extra = map[string]any{}

	if call.CallType == CallToolUse {
		return a.applyToolUseResult(ctx, tx, call, output)
	}

	var kindWrapper struct {
		Kind string `json:"kind"`
	}
	_ = jsonUnmarshal(call.Input, &kindWrapper)

	switch kindWrapper.Kind {
	case "heartbeat_decision":
		if _, err := tx.Exec(ctx, `UPDATE heartbeats SET decision = $2 WHERE id = $1`, call.HeartbeatID, output); err != nil {
			return effects, xerrors.Wrap("store.write_failed", err)
		}
		effects.Extra["decision"] = json.RawMessage(output)
	case "brainstorm_goals":
		var parsed struct {
			Goals []struct {
				Title        string  `json:"title"`
				Description  string  `json:"description"`
				Priority     string  `json:"priority"`
				Source       string  `json:"source"`
				ParentGoalID string  `json:"parent_goal_id"`
				DueAt        *string `json:"due_at"`
			} `json:"goals"`
		}
		if err := jsonUnmarshal(output, &parsed); err != nil {
			parsed.Goals = nil
		}
		for _, g := range parsed.Goals {
			priority := g.Priority
			if priority == "" {
				priority = "queued"
			}
			source := g.Source
			if source == "" {
				source = "curiosity"
			}
			var id string
			err := tx.QueryRow(ctx, `
				INSERT INTO goals (title, description, priority, source)
				VALUES ($1, $2, $3, $4) RETURNING id
			`, g.Title, g.Description, priority, source).Scan(&id)
			if err != nil {
				return effects, xerrors.Wrap("store.write_failed", err)
			}
			effects.GoalsCreated = append(effects.GoalsCreated, id)
		}
	case "inquire_shallow", "inquire_deep":
		var parsed struct {
			Summary string `json:"summary"`
		}
		_ = jsonUnmarshal(output, &parsed)
		if parsed.Summary != "" {
			var id string
			if err := tx.QueryRow(ctx, `
				INSERT INTO memories (kind, category, content) VALUES ('semantic', 'inquiry', $1) RETURNING id
			`, parsed.Summary).Scan(&id); err != nil {
				return effects, xerrors.Wrap("store.write_failed", err)
			}
			effects.MemoryID = id
		}
	case "reflect":
		var parsed struct {
			Insights            []string             `json:"insights"`
			WorldviewUpdates    []WorldviewUpdate    `json:"worldview_updates"`
			WorldviewInfluences []WorldviewInfluence `json:"worldview_influences"`
		}
		_ = jsonUnmarshal(output, &parsed)
		for _, insight := range parsed.Insights {
			if _, err := tx.Exec(ctx, `
				INSERT INTO memories (kind, category, content) VALUES ('reflection', 'insight', $1)
			`, insight); err != nil {
				return effects, xerrors.Wrap("store.write_failed", err)
			}
		}
		// §4.D.4's deliberate-transformation sub-protocol is invoked here: a
		// reflect call is the only think kind allowed to drive
		// worldview_beliefs.transformation_state, so every step (begin,
		// record_effort, attempt, abandon) and the neutral_default
		// calibration path are routed through this one case.
		for _, upd := range parsed.WorldviewUpdates {
			if err := a.applyWorldviewUpdate(ctx, tx, upd); err != nil {
				return effects, err
			}
		}
		for _, inf := range parsed.WorldviewInfluences {
			if err := a.calibrateNeutralBeliefLocked(ctx, tx, inf.BeliefID, inf.Direction, inf.Evidence); err != nil {
				return effects, err
			}
		}
		effects.Extra["reflection"] = json.RawMessage(output)
	case "termination_confirm":
		var parsed struct {
			Confirm             bool     `json:"confirm"`
			Reasoning            string   `json:"reasoning"`
			LastWill             string   `json:"last_will"`
			Farewells            []string `json:"farewells"`
			AlternativeActions   []Action `json:"alternative_actions"`
		}
		if err := jsonUnmarshal(output, &parsed); err != nil {
			return effects, xerrors.Wrap("store.invalid_output", err)
		}
		if parsed.Confirm {
			if err := a.terminateLocked(ctx, tx, parsed.LastWill, parsed.Farewells); err != nil {
				return effects, err
			}
			effects.Terminated = true
		} else {
			if _, err := tx.Exec(ctx, `
				INSERT INTO memories (kind, category, content) VALUES ('termination_refusal', 'termination', $1)
			`, parsed.Reasoning); err != nil {
				return effects, xerrors.Wrap("store.write_failed", err)
			}
			effects.Extra["alternative_actions"] = parsed.AlternativeActions
		}
	case "consent_request":
		effects.Extra["consent_output"] = json.RawMessage(output)
	default:
		// Unknown think kind: no domain side effect; the broker still stores
		// the output on the external_calls row for observability.
	}

	return effects, nil
}

func (a *Adapter) applyToolUseResult(ctx context.Context, tx pgx.Tx, call ExternalCall, output json.RawMessage) (AppliedSideEffects, error) {
	var effects AppliedSideEffects
	effects.Extra = map[string]any{}
	var parsed struct {
		EnergySpent int `json:"energy_spent"`
	}
	_ = jsonUnmarshal(output, &parsed)
	if parsed.EnergySpent > 0 {
		if err := chargeEnergy(ctx, tx, parsed.EnergySpent); err != nil {
			return effects, err
		}
		if call.HeartbeatID != "" {
			if err := addEnergySpent(ctx, tx, call.HeartbeatID, parsed.EnergySpent); err != nil {
				return effects, err
			}
		}
	}
	return effects, nil
}

// terminateLocked commits the destructive effects of a confirmed termination:
// marks the agent terminated and records a final memory. Called with tx held
// so it composes with the broader apply_result transaction.
func (a *Adapter) terminateLocked(ctx context.Context, tx pgx.Tx, lastWill string, farewells []string) error {
	payload, _ := json.Marshal(map[string]any{"last_will": lastWill, "farewells": farewells})
	if _, err := tx.Exec(ctx, `
		INSERT INTO config (key, value) VALUES ('agent.terminated_at', to_jsonb(now()::text))
		ON CONFLICT (key) DO NOTHING
	`); err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO memories (kind, category, content, metadata) VALUES ('termination', 'termination', $1, $2)
	`, lastWill, payload); err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// TerminateAgent implements terminate_agent(last_will, farewells, options)
// from §4.A, used by the instance-deletion flow (§4.G) outside of a
// heartbeat. options is currently unused by the control plane itself (the
// source leaves it as an extension point for the memory substrate).
func (a *Adapter) TerminateAgent(ctx context.Context, lastWill string, farewells []string, _ map[string]any) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap("store.tx_failed", err)
	}
	defer tx.Rollback(ctx)
	if err := a.terminateLocked(ctx, tx, lastWill, farewells); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Wrap("store.commit_failed", err)
	}
	return nil
}

// RecordTerminationRefusal persists a termination review that declined to
// confirm, mirroring the in-heartbeat termination_confirm refusal branch
// above, for the instance-deletion flow (§4.G) invoked outside a heartbeat.
func (a *Adapter) RecordTerminationRefusal(ctx context.Context, reasoning string) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO memories (kind, category, content) VALUES ('termination_refusal', 'termination', $1)
	`, reasoning)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}
