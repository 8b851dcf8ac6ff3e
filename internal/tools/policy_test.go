package tools

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

func TestCheckEnabledDefaultsToEnabled(t *testing.T) {
	spec := Spec{Name: "recall", Category: CategoryMemory}
	require.NoError(t, checkEnabled(spec, ContextHeartbeat, config.ToolsConfig{}))
}

func TestCheckEnabledGlobalDisabled(t *testing.T) {
	spec := Spec{Name: "shell", Category: CategoryShell}
	err := checkEnabled(spec, ContextHeartbeat, config.ToolsConfig{Disabled: []string{"shell"}})
	require.Error(t, err)
	require.Equal(t, KindDisabled, xerrors.KindOf(err))
}

func TestCheckEnabledCategoryDisabled(t *testing.T) {
	spec := Spec{Name: "shell", Category: CategoryShell}
	err := checkEnabled(spec, ContextHeartbeat, config.ToolsConfig{DisabledCategories: []string{"shell"}})
	require.Error(t, err)
	require.Equal(t, KindDisabled, xerrors.KindOf(err))
}

func TestCheckEnabledAllowlistExcludesUnlisted(t *testing.T) {
	spec := Spec{Name: "shell", Category: CategoryShell}
	err := checkEnabled(spec, ContextHeartbeat, config.ToolsConfig{Enabled: []string{"recall"}})
	require.Error(t, err)
	require.Equal(t, KindDisabled, xerrors.KindOf(err))
}

func TestCheckEnergyInsufficientBudget(t *testing.T) {
	spec := Spec{Name: "web_summarize", EnergyCost: 6}
	ec := &ExecContext{Context: ContextHeartbeat, EnergyAvailable: NewEnergyBudget(3)}
	err := checkEnergy(spec, ec, config.ToolsConfig{})
	require.Error(t, err)
	require.Equal(t, KindInsufficientEnergy, xerrors.KindOf(err))
}

func TestCheckEnergyIgnoredOutsideHeartbeat(t *testing.T) {
	spec := Spec{Name: "web_summarize", EnergyCost: 1000}
	ec := &ExecContext{Context: ContextChat}
	require.NoError(t, checkEnergy(spec, ec, config.ToolsConfig{}))
}

func TestCheckBoundaryBlocksRestrictedTool(t *testing.T) {
	spec := Spec{Name: "shell", Category: CategoryShell}
	boundaries := []Boundary{{RestrictsTools: []string{"shell"}, Reason: "no shell during reflection"}}
	err := checkBoundary(spec, boundaries)
	require.Error(t, err)
	require.Equal(t, KindBoundaryViolation, xerrors.KindOf(err))
	require.Contains(t, err.Error(), "no shell during reflection")
}

func TestCheckBoundaryBlocksRestrictedCategory(t *testing.T) {
	spec := Spec{Name: "run_script", Category: CategoryShell}
	boundaries := []Boundary{{RestrictsCategories: []string{"shell"}, Reason: "category banned"}}
	err := checkBoundary(spec, boundaries)
	require.Error(t, err)
	require.Equal(t, KindBoundaryViolation, xerrors.KindOf(err))
}

func TestCheckApprovalChatIsImplicit(t *testing.T) {
	spec := Spec{Name: "shell", RequiresApproval: true}
	require.NoError(t, checkApproval(spec, ContextChat, config.ToolsConfig{}))
}

func TestCheckApprovalHeartbeatRequiresGrant(t *testing.T) {
	spec := Spec{Name: "shell", RequiresApproval: true}
	err := checkApproval(spec, ContextHeartbeat, config.ToolsConfig{})
	require.Error(t, err)
	require.Equal(t, KindApprovalRequired, xerrors.KindOf(err))

	require.NoError(t, checkApproval(spec, ContextHeartbeat, config.ToolsConfig{Approvals: []string{"shell"}}))
}

// TestCheckEnergyProperty verifies the energy gate's core invariant: cost
// strictly above the available budget is always rejected, never admitted.
func TestCheckEnergyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("cost above available energy is always insufficient_energy", prop.ForAll(
		func(cost, available int) bool {
			if cost <= 0 || available < 0 || cost <= available {
				return true
			}
			spec := Spec{Name: "tool", EnergyCost: cost}
			ec := &ExecContext{Context: ContextHeartbeat, EnergyAvailable: NewEnergyBudget(available)}
			err := checkEnergy(spec, ec, config.ToolsConfig{})
			return err != nil && xerrors.KindOf(err) == KindInsufficientEnergy
		},
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.Property("cost at or below available energy is always admitted", prop.ForAll(
		func(cost, available int) bool {
			if cost < 0 || available < 0 || cost > available {
				return true
			}
			spec := Spec{Name: "tool", EnergyCost: cost}
			ec := &ExecContext{Context: ContextHeartbeat, EnergyAvailable: NewEnergyBudget(available)}
			return checkEnergy(spec, ec, config.ToolsConfig{}) == nil
		},
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
