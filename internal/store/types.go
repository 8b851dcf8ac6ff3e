package store

import (
	"encoding/json"
	"time"
)

// HeartbeatState is the singleton energy/scheduling state described in §3.
type HeartbeatState struct {
	IsPaused          bool
	CurrentEnergy     int
	MaxEnergy         int
	BaseRegeneration  int
	IntervalMinutes   int
	LastUserContact   time.Time
	LastHeartbeatAt   time.Time
}

// ShouldRunHeartbeat implements the invariant from §3: true iff configured,
// not paused, and the interval has elapsed since the last heartbeat.
func (s HeartbeatState) ShouldRunHeartbeat(configured bool, now time.Time) bool {
	if !configured || s.IsPaused {
		return false
	}
	if s.IntervalMinutes <= 0 {
		return true
	}
	return now.Sub(s.LastHeartbeatAt) >= time.Duration(s.IntervalMinutes)*time.Minute
}

// MaintenanceState is the singleton substrate-maintenance cadence state.
type MaintenanceState struct {
	IsPaused       bool
	IntervalSeconds int
	LastRunAt      time.Time
}

func (s MaintenanceState) ShouldRunMaintenance(now time.Time) bool {
	if s.IsPaused {
		return false
	}
	if s.IntervalSeconds <= 0 {
		return true
	}
	return now.Sub(s.LastRunAt) >= time.Duration(s.IntervalSeconds)*time.Second
}

// HeartbeatOutcome enumerates the terminal and in-flight states of a heartbeat.
type HeartbeatOutcome string

const (
	HeartbeatRunning    HeartbeatOutcome = "running"
	HeartbeatFinalized  HeartbeatOutcome = "finalized"
	HeartbeatTerminated HeartbeatOutcome = "terminated"
	HeartbeatFailed     HeartbeatOutcome = "failed"
)

// Heartbeat is the in-flight heartbeat row described in §3.
type Heartbeat struct {
	ID            string
	StartedAt     time.Time
	ActionsPlanned json.RawMessage
	ActionsIndex  int
	EnergySpent   int
	Decision      json.RawMessage
	Outcome       HeartbeatOutcome
}

// ExternalCallType enumerates call_type values.
type ExternalCallType string

const (
	CallThink   ExternalCallType = "think"
	CallToolUse ExternalCallType = "tool_use"
	CallEmbed   ExternalCallType = "embed" // reserved/unsupported at the broker layer
)

// ExternalCallStatus enumerates status values.
type ExternalCallStatus string

const (
	StatusPending    ExternalCallStatus = "pending"
	StatusProcessing ExternalCallStatus = "processing"
	StatusComplete   ExternalCallStatus = "complete"
	StatusFailed     ExternalCallStatus = "failed"
)

// ExternalCall is the durable queue row described in §3 and §4.B.
type ExternalCall struct {
	ID          string
	CallType    ExternalCallType
	Input       json.RawMessage
	Status      ExternalCallStatus
	RetryCount  int
	HeartbeatID string
	RequestedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Output      json.RawMessage
	ErrorMessage string
}

// OutboxStatus enumerates OutboxMessage.status values.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage is the egress envelope described in §3.
type OutboxMessage struct {
	ID           string
	Kind         string
	Payload      json.RawMessage
	Status       OutboxStatus
	CreatedAt    time.Time
	SentAt       *time.Time
	ErrorMessage string
}

// StartHeartbeatResult is returned by StartHeartbeat.
type StartHeartbeatResult struct {
	HeartbeatID    string
	ExternalCalls  []ExternalCall
	OutboxMessages []OutboxMessage
}

// ApplyDecisionResult is returned by ApplyHeartbeatDecision.
type ApplyDecisionResult struct {
	PendingExternalCall   *ExternalCall
	NextIndex             int
	Completed             bool
	Terminated            bool
	MemoryID              string
	HaltReason            string
	OutboxMessages        []OutboxMessage
}

// AppliedSideEffects is returned by ApplyExternalCallResult.
type AppliedSideEffects struct {
	OutboxMessages []OutboxMessage
	Terminated     bool
	GoalsCreated   []string
	MemoryID       string
	Extra          map[string]any
}

// Goal mirrors the minimal goal shape the control plane reads/writes.
type Goal struct {
	ID            string
	Title         string
	Description   string
	Priority      string
	Source        string
	ParentGoalID  string
	DueAt         *time.Time
	Status        string
	CreatedAt     time.Time
}

// TransformationState mirrors §3's worldview belief transformation_state.
type TransformationState struct {
	ActiveExploration bool     `json:"active_exploration"`
	ExplorationGoalID string   `json:"exploration_goal_id,omitempty"`
	ReflectionCount   int      `json:"reflection_count"`
	EvidenceMemories  []string `json:"evidence_memories"`
	ChangeHistory     []ChangeRecord `json:"change_history"`
}

// ChangeRecord captures one committed worldview mutation.
type ChangeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	OldContent string   `json:"old_content"`
	NewContent string   `json:"new_content"`
}

// WorldviewBelief is the minimal belief shape the control plane mutates
// through the deliberate-transformation protocol (§4.D).
type WorldviewBelief struct {
	ID              string
	Subcategory     string
	Origin          string
	Content         string
	ChangeRequires  string
	TransformationState TransformationState
	UpdatedAt       time.Time
}
