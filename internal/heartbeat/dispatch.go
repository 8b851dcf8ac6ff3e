package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/QuixiAI/Hexis/internal/hooks"
	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// dispatch resolves one external call's output: a think call goes through
// the bound language model and a per-kind fallback on parse failure; a
// tool_use call goes through the tool registry, per §4.F step 3.
func (d *Driver) dispatch(ctx context.Context, heartbeatID string, call store.ExternalCall) (json.RawMessage, error) {
	switch call.CallType {
	case store.CallThink:
		return d.dispatchThink(ctx, heartbeatID, call)
	case store.CallToolUse:
		return d.dispatchToolUse(ctx, heartbeatID, call)
	default:
		return nil, xerrors.Newf(KindUnknownThink, "unsupported call type %q", call.CallType)
	}
}

func (d *Driver) dispatchThink(ctx context.Context, heartbeatID string, call store.ExternalCall) (json.RawMessage, error) {
	var input struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(call.Input, &input)

	var params map[string]any
	_ = json.Unmarshal(call.Input, &params)

	turnContext, err := d.Store.GatherTurnContext(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := d.Think(ctx, input.Kind, turnContext, params)
	if err != nil {
		return nil, err
	}
	return coerceThinkOutput(input.Kind, raw), nil
}

// coerceThinkOutput validates raw against the think-call output schema named
// by kind, substituting the documented fallback when it fails to parse, per
// §4.D. Kinds with no documented fallback (termination_confirm,
// consent_request) are passed through raw; a malformed response there
// surfaces as a domain error from store.ApplyExternalCallResult rather than
// being silently papered over, since inventing a fallback confirm/decision
// there would be worse than failing loudly.
func coerceThinkOutput(kind string, raw json.RawMessage) json.RawMessage {
	switch kind {
	case "heartbeat_decision":
		var v struct {
			Reasoning string `json:"reasoning"`
			Actions   []any  `json:"actions"`
		}
		if err := json.Unmarshal(raw, &v); err != nil || v.Actions == nil {
			b, _ := json.Marshal(store.FallbackDecision())
			return b
		}
		return raw
	case "brainstorm_goals":
		var v struct {
			Goals []any `json:"goals"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return json.RawMessage(`{"goals":[]}`)
		}
		return raw
	case "inquire_shallow", "inquire_deep":
		var v struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return json.RawMessage(`{"summary":"","confidence":0,"sources":[]}`)
		}
		return raw
	case "reflect":
		var v map[string]any
		if err := json.Unmarshal(raw, &v); err != nil {
			return json.RawMessage(`{"insights":[],"identity_updates":[],"worldview_updates":[],"worldview_influences":[],"discovered_relationships":[],"contradictions_noted":[],"self_updates":[]}`)
		}
		return raw
	default:
		return raw
	}
}

func (d *Driver) dispatchToolUse(ctx context.Context, heartbeatID string, call store.ExternalCall) (json.RawMessage, error) {
	var input struct {
		ToolName  string         `json:"tool_name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(call.Input, &input); err != nil {
		return nil, xerrors.Wrap(KindUnknownThink, err)
	}

	state, err := d.Store.HeartbeatState(ctx)
	if err != nil {
		return nil, err
	}
	ec := &tools.ExecContext{
		Go:              ctx,
		Context:         tools.ContextHeartbeat,
		WorkspacePath:   d.Workspace,
		AllowFileRead:   true,
		AllowFileWrite:  d.AllowWrite,
		AllowShell:      d.AllowShell,
		EnergyAvailable: tools.NewEnergyBudget(state.CurrentEnergy),
		CallID:          call.ID,
	}

	d.publish(ctx, hooks.NewToolExecutionStartedEvent(heartbeatID, input.ToolName, call.ID))
	start := time.Now()
	result, execErr := d.Tools.Execute(ec, input.ToolName, input.Arguments)
	duration := time.Since(start)

	payload := map[string]any{
		"kind":             "tool_use",
		"tool_name":        input.ToolName,
		"heartbeat_id":     heartbeatID,
		"duration_seconds": duration.Seconds(),
	}
	if execErr != nil {
		payload["success"] = false
		payload["error"] = execErr.Error()
		payload["error_type"] = xerrors.KindOf(execErr)
		payload["energy_spent"] = 0
		d.publish(ctx, hooks.NewToolExecutionFinishedEvent(heartbeatID, input.ToolName, call.ID, 0, execErr.Error(), duration))
	} else {
		payload["success"] = true
		payload["output"] = result.Output
		payload["energy_spent"] = result.EnergySpent
		d.publish(ctx, hooks.NewToolExecutionFinishedEvent(heartbeatID, input.ToolName, call.ID, result.EnergySpent, "", duration))
	}
	return json.Marshal(payload)
}
