package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// fakeConfigStore is an empty in-memory config.Store: every test in this
// file runs the policy pipeline against ToolsConfig's zero value, so no
// key ever needs to resolve to anything.
type fakeConfigStore struct{}

func (fakeConfigStore) GetConfig(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return nil, false, nil
}
func (fakeConfigStore) SetConfig(ctx context.Context, key string, value json.RawMessage) error {
	return nil
}
func (fakeConfigStore) AllConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	return nil, nil
}

type echoHandler struct {
	spec Spec
	err  error
	delay time.Duration
}

func (h echoHandler) Spec() Spec { return h.spec }
func (h echoHandler) Execute(ec *ExecContext, args map[string]any) (Result, error) {
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ec.Go.Done():
			return Result{}, ec.Go.Err()
		}
	}
	if h.err != nil {
		return Result{}, h.err
	}
	return Result{Output: map[string]any{"echo": args["text"]}}, nil
}

func newTestLoader(t *testing.T) *config.Loader {
	t.Helper()
	loader, err := config.NewLoader(fakeConfigStore{}, "")
	require.NoError(t, err)
	return loader
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(newTestLoader(t), nil)
	_, err := r.Execute(&ExecContext{Go: context.Background(), Context: ContextChat}, "missing", nil)
	require.Error(t, err)
	require.Equal(t, KindUnknownTool, xerrors.KindOf(err))
}

func TestRegistryExecuteHappyPath(t *testing.T) {
	r := NewRegistry(newTestLoader(t), nil)
	h := echoHandler{spec: Spec{
		Name:       "echo",
		EnergyCost: 3,
		Parameters: MustSchema(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
	}}
	require.NoError(t, r.Register(h, nil))

	budget := NewEnergyBudget(10)
	ec := &ExecContext{Go: context.Background(), Context: ContextHeartbeat, EnergyAvailable: budget}
	result, err := r.Execute(ec, "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", result.Output["echo"])
	require.Equal(t, 3, result.EnergySpent)
	require.Equal(t, 7, budget.Get())
}

func TestRegistryExecuteInvalidParams(t *testing.T) {
	r := NewRegistry(newTestLoader(t), nil)
	h := echoHandler{spec: Spec{
		Name:       "echo",
		Parameters: MustSchema(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
	}}
	require.NoError(t, r.Register(h, nil))

	_, err := r.Execute(&ExecContext{Go: context.Background(), Context: ContextChat}, "echo", map[string]any{})
	require.Error(t, err)
	require.Equal(t, KindInvalidParams, xerrors.KindOf(err))
}

func TestRegistryExecuteTimeout(t *testing.T) {
	r := NewRegistry(newTestLoader(t), nil).WithTimeout(20 * time.Millisecond)
	h := echoHandler{spec: Spec{Name: "slow"}, delay: 200 * time.Millisecond}
	require.NoError(t, r.Register(h, nil))

	_, err := r.Execute(&ExecContext{Go: context.Background(), Context: ContextChat}, "slow", nil)
	require.Error(t, err)
	require.Equal(t, KindTimeout, xerrors.KindOf(err))
}

func TestRegistryExecuteBoundaryViolation(t *testing.T) {
	boundaries := func(ctx context.Context) ([]Boundary, error) {
		return []Boundary{{RestrictsTools: []string{"echo"}, Reason: "blocked"}}, nil
	}
	r := NewRegistry(newTestLoader(t), boundaries)
	h := echoHandler{spec: Spec{Name: "echo"}}
	require.NoError(t, r.Register(h, nil))

	_, err := r.Execute(&ExecContext{Go: context.Background(), Context: ContextChat}, "echo", nil)
	require.Error(t, err)
	require.Equal(t, KindBoundaryViolation, xerrors.KindOf(err))
}

func TestBatchExecuteReturnsResultsInOrder(t *testing.T) {
	r := NewRegistry(newTestLoader(t), nil)
	require.NoError(t, r.Register(echoHandler{spec: Spec{Name: "a", SupportsParallel: true}}, nil))
	require.NoError(t, r.Register(echoHandler{spec: Spec{Name: "b", SupportsParallel: false}}, nil))
	require.NoError(t, r.Register(echoHandler{spec: Spec{Name: "c", SupportsParallel: true}}, nil))

	calls := []Call{
		{Name: "a", Args: map[string]any{"text": "1"}},
		{Name: "b", Args: map[string]any{"text": "2"}},
		{Name: "c", Args: map[string]any{"text": "3"}},
	}
	results := r.BatchExecute(&ExecContext{Go: context.Background(), Context: ContextChat}, calls)
	require.Len(t, results, 3)
	require.Equal(t, "1", results[0].Result.Output["echo"])
	require.Equal(t, "2", results[1].Result.Output["echo"])
	require.Equal(t, "3", results[2].Result.Output["echo"])
}
