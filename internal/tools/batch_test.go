package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBatchExecuteParallelEnergyAccounting runs a batch of several
// parallel-safe tools sharing one EnergyBudget through the race detector: if
// the budget is ever read or written unsynchronized, -race flags it. The
// final remaining energy must also be exact, since EnergyBudget.Spend is
// what makes the concurrent decrements serialize instead of clobbering each
// other.
func TestBatchExecuteParallelEnergyAccounting(t *testing.T) {
	r := NewRegistry(newTestLoader(t), nil)
	spec := Spec{
		Name:             "echo",
		EnergyCost:       2,
		SupportsParallel: true,
		Parameters:       MustSchema(`{"type":"object"}`),
	}
	require.NoError(t, r.Register(echoHandler{spec: spec}, nil))

	const calls = 20
	budget := NewEnergyBudget(1000)
	ec := &ExecContext{Go: context.Background(), Context: ContextHeartbeat, EnergyAvailable: budget}

	batch := make([]Call, calls)
	for i := range batch {
		batch[i] = Call{Name: "echo", Args: map[string]any{"text": "hi"}}
	}

	results := r.BatchExecute(ec, batch)
	require.Len(t, results, calls)
	for _, res := range results {
		require.NoError(t, res.Err)
		require.NotEmpty(t, res.CallID)
	}
	require.Equal(t, 1000-calls*2, budget.Get())
}
