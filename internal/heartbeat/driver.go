// Package heartbeat drives a single heartbeat from start to finalize or
// termination, per §4.D: one initial think[heartbeat_decision] external
// call, then a decide/act loop that pauses at every subsequent external call
// until the broker has applied its result.
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

const (
	KindNoPendingCall = "heartbeat.no_pending_call"
	KindUnknownThink  = "heartbeat.unknown_think_kind"
)

// Store is the narrow slice of store.Adapter the driver needs, declared
// locally (rather than depending on *store.Adapter's full surface) so tests
// can supply a fake without a database, mirroring the broker package's own
// SideEffectApplier precedent.
type Store interface {
	RunHeartbeat(ctx context.Context) (*store.StartHeartbeatResult, error)
	ApplyHeartbeatDecision(ctx context.Context, heartbeatID string, decision store.Decision, startIndex int) (store.ApplyDecisionResult, error)
	GatherTurnContext(ctx context.Context) (json.RawMessage, error)
	HeartbeatState(ctx context.Context) (store.HeartbeatState, error)
}

// Broker is the narrow slice of broker.Broker the driver needs.
type Broker interface {
	ClaimCallByID(ctx context.Context, id string) (*store.ExternalCall, error)
	ApplyResult(ctx context.Context, id string, output json.RawMessage) (store.AppliedSideEffects, error)
	FailCall(ctx context.Context, id string, errMsg string, maxRetries int, retry bool) error
}

// ToolExecutor is the narrow slice of tools.Registry the driver needs to
// dispatch a tool_use external call.
type ToolExecutor interface {
	Execute(ec *tools.ExecContext, name string, args map[string]any) (tools.Result, error)
}

// ThinkFunc issues one think call to the language model bound to the
// heartbeat (or subconscious) role and returns its raw, unvalidated JSON
// output. Kept as a function value rather than an interface so this package
// never needs to know about the model-client or consent-gate packages; the
// wiring layer is responsible for resolving llm.heartbeat, verifying
// consent, and substituting this closure.
type ThinkFunc func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error)

// Driver runs heartbeats to completion against Store/Broker/Tools.
type Driver struct {
	Store      Store
	Broker     Broker
	Tools      ToolExecutor
	Think      ThinkFunc
	Bus        hooks.Bus
	Workspace  string
	AllowShell bool
	AllowWrite bool
	MaxRetries int
}

// Outcome summarizes how one RunOnce call ended.
type Outcome struct {
	Skipped     bool
	HeartbeatID string
	Completed   bool
	Terminated  bool
	MemoryID    string
}

// RunOnce drives exactly one heartbeat to completion, following §4.D's loop.
// If no heartbeat is due, Outcome.Skipped is true and err is nil, matching
// the worker contract in §4.F ("if it returned nothing, sleep and continue").
func (d *Driver) RunOnce(ctx context.Context) (Outcome, error) {
	res, err := d.Store.RunHeartbeat(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if res == nil {
		return Outcome{Skipped: true}, nil
	}
	if len(res.ExternalCalls) == 0 {
		return Outcome{}, xerrors.New(KindNoPendingCall, "start_heartbeat returned no initial external call")
	}
	hbID := res.HeartbeatID
	d.publish(ctx, hooks.NewHeartbeatStartedEvent(hbID, res.ExternalCalls[0].ID))

	pending := res.ExternalCalls[0]
	effects, err := d.service(ctx, hbID, pending)
	if err != nil {
		return Outcome{}, err
	}
	if effects.Terminated {
		d.publish(ctx, hooks.NewHeartbeatTerminatedEvent(hbID, ""))
		return Outcome{HeartbeatID: hbID, Terminated: true}, nil
	}

	decisionRaw, _ := effects.Extra["decision"].(json.RawMessage)
	decision := parseDecisionOrFallback(decisionRaw)

	nextIndex := 0
	for {
		applyRes, err := d.Store.ApplyHeartbeatDecision(ctx, hbID, decision, nextIndex)
		if err != nil {
			return Outcome{}, err
		}
		if applyRes.Completed {
			d.publish(ctx, hooks.NewHeartbeatFinalizedEvent(hbID, applyRes.MemoryID, applyRes.HaltReason))
			return Outcome{HeartbeatID: hbID, Completed: true, MemoryID: applyRes.MemoryID}, nil
		}
		if applyRes.Terminated {
			d.publish(ctx, hooks.NewHeartbeatTerminatedEvent(hbID, ""))
			return Outcome{HeartbeatID: hbID, Terminated: true}, nil
		}
		if applyRes.PendingExternalCall == nil {
			// Nothing pending and not completed/terminated: the action list
			// was exhausted by a concurrent caller. Treat as finalized with
			// no fresh memory rather than spinning.
			return Outcome{HeartbeatID: hbID, Completed: true}, nil
		}

		effects, err := d.service(ctx, hbID, *applyRes.PendingExternalCall)
		if err != nil {
			return Outcome{}, err
		}
		if effects.Terminated {
			d.publish(ctx, hooks.NewHeartbeatTerminatedEvent(hbID, ""))
			return Outcome{HeartbeatID: hbID, Terminated: true}, nil
		}
		nextIndex = applyRes.NextIndex
	}
}

// service dispatches one external call (think or tool_use) and applies its
// result via the broker, publishing the scheduled/resolved/failed events
// around it.
func (d *Driver) service(ctx context.Context, heartbeatID string, call store.ExternalCall) (store.AppliedSideEffects, error) {
	d.publish(ctx, hooks.NewExternalCallScheduledEvent(heartbeatID, call.ID, string(call.CallType), call.Input))

	claimed, err := d.Broker.ClaimCallByID(ctx, call.ID)
	if err != nil {
		return store.AppliedSideEffects{}, err
	}
	if claimed == nil {
		// Already claimed (and possibly resolved) by another worker racing
		// the same heartbeat row; nothing left for this pass to do.
		return store.AppliedSideEffects{}, xerrors.New(KindNoPendingCall, "external call already claimed")
	}

	start := time.Now()
	output, err := d.dispatch(ctx, heartbeatID, call)
	if err != nil {
		retry := d.MaxRetries > 0
		d.publish(ctx, hooks.NewExternalCallFailedEvent(heartbeatID, call.ID, err.Error(), call.RetryCount, !retry))
		if failErr := d.Broker.FailCall(ctx, call.ID, err.Error(), d.MaxRetries, retry); failErr != nil {
			return store.AppliedSideEffects{}, failErr
		}
		return store.AppliedSideEffects{}, err
	}

	effects, err := d.Broker.ApplyResult(ctx, call.ID, output)
	if err != nil {
		return store.AppliedSideEffects{}, err
	}
	d.publish(ctx, hooks.NewExternalCallResolvedEvent(heartbeatID, call.ID, output, time.Since(start)))
	return effects, nil
}

func (d *Driver) publish(ctx context.Context, event hooks.Event) {
	if d.Bus == nil {
		return
	}
	_ = d.Bus.Publish(ctx, event)
}

func parseDecisionOrFallback(raw json.RawMessage) store.Decision {
	if len(raw) == 0 {
		return store.FallbackDecision()
	}
	var d store.Decision
	if err := json.Unmarshal(raw, &d); err != nil || d.Actions == nil {
		return store.FallbackDecision()
	}
	return d
}
