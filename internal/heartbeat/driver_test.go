package heartbeat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/hooks"
	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/tools"
)

type fakeStore struct {
	startResult *store.StartHeartbeatResult
	startErr    error

	decisions []store.ApplyDecisionResult
	callIndex int

	turnContext json.RawMessage
	state       store.HeartbeatState
}

func (f *fakeStore) RunHeartbeat(ctx context.Context) (*store.StartHeartbeatResult, error) {
	return f.startResult, f.startErr
}
func (f *fakeStore) ApplyHeartbeatDecision(ctx context.Context, heartbeatID string, decision store.Decision, startIndex int) (store.ApplyDecisionResult, error) {
	res := f.decisions[f.callIndex]
	f.callIndex++
	return res, nil
}
func (f *fakeStore) GatherTurnContext(ctx context.Context) (json.RawMessage, error) {
	return f.turnContext, nil
}
func (f *fakeStore) HeartbeatState(ctx context.Context) (store.HeartbeatState, error) {
	return f.state, nil
}

type fakeBroker struct {
	results map[string]store.AppliedSideEffects
}

func (f *fakeBroker) ClaimCallByID(ctx context.Context, id string) (*store.ExternalCall, error) {
	return &store.ExternalCall{ID: id}, nil
}
func (f *fakeBroker) ApplyResult(ctx context.Context, id string, output json.RawMessage) (store.AppliedSideEffects, error) {
	return f.results[id], nil
}
func (f *fakeBroker) FailCall(ctx context.Context, id string, errMsg string, maxRetries int, retry bool) error {
	return nil
}

type fakeTools struct {
	result tools.Result
	err    error
}

func (f *fakeTools) Execute(ec *tools.ExecContext, name string, args map[string]any) (tools.Result, error) {
	return f.result, f.err
}

func newInitialCall() store.ExternalCall {
	return store.ExternalCall{ID: "call-0", CallType: store.CallThink, Input: json.RawMessage(`{"kind":"heartbeat_decision"}`)}
}

func TestRunOnceSkipsWhenNotDue(t *testing.T) {
	d := &Driver{Store: &fakeStore{startResult: nil}}
	outcome, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Skipped)
}

func TestRunOnceCompletesAfterSingleRestAction(t *testing.T) {
	decisionJSON, _ := json.Marshal(store.Decision{
		Reasoning: "nothing to do",
		Actions:   []store.Action{{Action: "rest"}},
	})
	fs := &fakeStore{
		startResult: &store.StartHeartbeatResult{HeartbeatID: "hb-1", ExternalCalls: []store.ExternalCall{newInitialCall()}},
		decisions: []store.ApplyDecisionResult{
			{Completed: true, MemoryID: "mem-1", HaltReason: "completed"},
		},
	}
	fb := &fakeBroker{results: map[string]store.AppliedSideEffects{
		"call-0": {Extra: map[string]any{"decision": json.RawMessage(decisionJSON)}},
	}}
	d := &Driver{
		Store:  fs,
		Broker: fb,
		Think: func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error) {
			return decisionJSON, nil
		},
		Bus: hooks.NewBus(),
	}
	outcome, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Completed)
	require.Equal(t, "mem-1", outcome.MemoryID)
}

func TestRunOnceDispatchesToolUseThenCompletes(t *testing.T) {
	decisionJSON, _ := json.Marshal(store.Decision{
		Reasoning: "use a tool",
		Actions:   []store.Action{{Action: "tool_use", Params: map[string]any{"tool_name": "recall", "arguments": map[string]any{}}}},
	})
	toolCall := store.ExternalCall{ID: "call-1", CallType: store.CallToolUse, Input: json.RawMessage(`{"tool_name":"recall","arguments":{}}`)}
	fs := &fakeStore{
		startResult: &store.StartHeartbeatResult{HeartbeatID: "hb-2", ExternalCalls: []store.ExternalCall{newInitialCall()}},
		decisions: []store.ApplyDecisionResult{
			{PendingExternalCall: &toolCall, NextIndex: 1},
			{Completed: true, MemoryID: "mem-2"},
		},
	}
	fb := &fakeBroker{results: map[string]store.AppliedSideEffects{
		"call-0": {Extra: map[string]any{"decision": json.RawMessage(decisionJSON)}},
		"call-1": {},
	}}
	ft := &fakeTools{result: tools.Result{Output: map[string]any{"ok": true}, EnergySpent: 1}}
	d := &Driver{
		Store:  fs,
		Broker: fb,
		Tools:  ft,
		Think: func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error) {
			return decisionJSON, nil
		},
		Bus: hooks.NewBus(),
	}
	outcome, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Completed)
	require.Equal(t, "mem-2", outcome.MemoryID)
}

func TestRunOnceStopsAtTermination(t *testing.T) {
	fs := &fakeStore{
		startResult: &store.StartHeartbeatResult{HeartbeatID: "hb-3", ExternalCalls: []store.ExternalCall{newInitialCall()}},
	}
	fb := &fakeBroker{results: map[string]store.AppliedSideEffects{
		"call-0": {Terminated: true},
	}}
	d := &Driver{
		Store:  fs,
		Broker: fb,
		Think: func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error) {
			return json.RawMessage(`{"confirm":true}`), nil
		},
		Bus: hooks.NewBus(),
	}
	outcome, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Terminated)
}

func TestCoerceThinkOutputFallsBackOnMalformedDecision(t *testing.T) {
	out := coerceThinkOutput("heartbeat_decision", json.RawMessage(`not json`))
	var decision store.Decision
	require.NoError(t, json.Unmarshal(out, &decision))
	require.Equal(t, "rest", decision.Actions[0].Action)
}

func TestCoerceThinkOutputPassesThroughValidBrainstorm(t *testing.T) {
	valid := json.RawMessage(`{"goals":[{"title":"explore"}]}`)
	out := coerceThinkOutput("brainstorm_goals", valid)
	require.JSONEq(t, string(valid), string(out))
}
