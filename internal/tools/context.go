package tools

import (
	"context"
	"sync"
)

// ExecContext carries the per-call state the policy pipeline and handlers
// need: which context invoked the tool, the workspace boundary for
// filesystem tools, and (in the heartbeat context) the remaining energy
// budget.
type ExecContext struct {
	Go              context.Context
	Context         Context
	WorkspacePath   string
	AllowFileRead   bool
	AllowFileWrite  bool
	AllowShell      bool
	EnergyAvailable *EnergyBudget // nil outside the heartbeat context
	CallID          string
}

// EnergyBudget is a mutex-guarded energy counter. BatchExecute shares one
// instance's pointer across every goroutine it fans out for a batch's
// parallel-safe tool calls, so Get/Spend must serialize access rather than
// letting callers read or write the counter directly.
type EnergyBudget struct {
	mu        sync.Mutex
	available int
}

// NewEnergyBudget constructs a budget starting at available.
func NewEnergyBudget(available int) *EnergyBudget {
	return &EnergyBudget{available: available}
}

// Get returns the current remaining energy.
func (b *EnergyBudget) Get() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// Spend atomically decrements the budget by cost.
func (b *EnergyBudget) Spend(cost int) {
	b.mu.Lock()
	b.available -= cost
	b.mu.Unlock()
}

// BoundariesFunc resolves the active worldview restrictions a policy check
// must honor. Typically bound to store.Adapter.ActiveBoundaries with a thin
// type conversion at wiring time, keeping this package free of a direct
// store import.
type BoundariesFunc func(ctx context.Context) ([]Boundary, error)

// Boundary is one active worldview restriction.
type Boundary struct {
	RestrictsTools      []string
	RestrictsCategories []string
	Reason              string
}
