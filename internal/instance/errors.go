package instance

// Error kinds for the instance registry and lifecycle (§7 control-plane
// taxonomy).
const (
	KindInstanceNotFound    = "instance_not_found"
	KindInstanceExists      = "instance_exists"
	KindInvalidInstanceName = "invalid_instance_name"
	KindAgentDeletionRefused = "agent_deletion_refused"
)
