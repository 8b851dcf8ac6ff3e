package tools

import (
	"strings"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// checkPolicy runs step 3 of §4.C's execution protocol: enabled, context,
// energy, boundary, approval, in that order, denying at the first failure.
func checkPolicy(spec Spec, ec *ExecContext, cfg config.ToolsConfig, boundaries []Boundary) error {
	if err := checkEnabled(spec, ec.Context, cfg); err != nil {
		return err
	}
	if !spec.AllowsContext(ec.Context) {
		return xerrors.Newf(KindContextDenied, "tool %q is not allowed in context %q", spec.Name, ec.Context)
	}
	if err := checkEnergy(spec, ec, cfg); err != nil {
		return err
	}
	if err := checkBoundary(spec, boundaries); err != nil {
		return err
	}
	if err := checkApproval(spec, ec.Context, cfg); err != nil {
		return err
	}
	return nil
}

func checkEnabled(spec Spec, ctx Context, cfg config.ToolsConfig) error {
	for _, cat := range cfg.DisabledCategories {
		if Category(cat) == spec.Category {
			return xerrors.Newf(KindDisabled, "tool category %q is disabled", spec.Category)
		}
	}
	for _, name := range cfg.Disabled {
		if name == spec.Name {
			return xerrors.Newf(KindDisabled, "tool %q is disabled", spec.Name)
		}
	}
	if override, ok := cfg.ContextOverrides[string(ctx)]; ok {
		for _, name := range override.Disabled {
			if name == spec.Name {
				return xerrors.Newf(KindDisabled, "tool %q is disabled in context %q", spec.Name, ctx)
			}
		}
		if override.AllowAll {
			return nil
		}
		if len(override.Enabled) > 0 {
			for _, name := range override.Enabled {
				if name == spec.Name {
					return nil
				}
			}
			return xerrors.Newf(KindDisabled, "tool %q is not enabled in context %q", spec.Name, ctx)
		}
	}
	if len(cfg.Enabled) == 0 {
		return nil // no explicit allow-list: default to enabled
	}
	for _, name := range cfg.Enabled {
		if name == spec.Name {
			return nil
		}
	}
	return xerrors.Newf(KindDisabled, "tool %q is not in the enabled list", spec.Name)
}

func resolvedCost(spec Spec, cfg config.ToolsConfig) int {
	if cost, ok := cfg.Costs[spec.Name]; ok {
		return cost
	}
	return spec.EnergyCost
}

func checkEnergy(spec Spec, ec *ExecContext, cfg config.ToolsConfig) error {
	if ec.Context != ContextHeartbeat || ec.EnergyAvailable == nil {
		return nil
	}
	cost := resolvedCost(spec, cfg)
	if override, ok := cfg.ContextOverrides[string(ec.Context)]; ok && override.MaxEnergyPerTool > 0 && cost > override.MaxEnergyPerTool {
		return xerrors.Newf(KindInsufficientEnergy, "tool %q cost %d exceeds max_energy_per_tool %d", spec.Name, cost, override.MaxEnergyPerTool)
	}
	if available := ec.EnergyAvailable.Get(); cost > available {
		return xerrors.Newf(KindInsufficientEnergy, "tool %q cost %d exceeds available energy %d", spec.Name, cost, available)
	}
	return nil
}

func checkBoundary(spec Spec, boundaries []Boundary) error {
	for _, b := range boundaries {
		for _, name := range b.RestrictsTools {
			if name == spec.Name {
				return xerrors.New(KindBoundaryViolation, b.Reason)
			}
		}
		for _, cat := range b.RestrictsCategories {
			if Category(cat) == spec.Category {
				return xerrors.New(KindBoundaryViolation, b.Reason)
			}
		}
	}
	return nil
}

func checkApproval(spec Spec, ctx Context, cfg config.ToolsConfig) error {
	if !spec.RequiresApproval || ctx != ContextHeartbeat {
		return nil
	}
	for _, approved := range cfg.Approvals {
		if approved == spec.Name {
			return nil
		}
	}
	return xerrors.Newf(KindApprovalRequired, "tool %q requires first-use approval", spec.Name)
}

// sanitizedName lowercases and trims a tool name for map lookups, matching
// the registry's case-insensitive MCP wrapper naming ("mcp_{server}_{tool}").
func sanitizedName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
