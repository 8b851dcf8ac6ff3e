package store

// Error kinds for the control-plane taxonomy (§7). These are the kinds that
// flow out of store.Adapter operations; broker- and tool-specific kinds live
// in their own packages.
const (
	KindAgentNotConfigured = "agent_not_configured"
	KindAgentTerminated    = "agent_terminated"
	KindHeartbeatNotFound  = "heartbeat_not_found"
	KindInvalidActionIndex = "invalid_action_index"
	KindBeliefNotFound     = "belief_not_found"

	// Worldview transformation kinds (§4.D.4, §7).
	KindNotNeutralDefault       = "not_neutral_default"
	KindInsufficientReflections = "insufficient_reflections"
	KindInsufficientEvidence    = "insufficient_evidence"
	KindStabilityNotCleared     = "stability_not_cleared"
	KindExplorationNotActive    = "exploration_not_active"
)
