package hooks

import (
	"encoding/json"
	"time"
)

// EventType identifies the concrete shape of an Event without a type switch.
type EventType string

const (
	HeartbeatStarted        EventType = "heartbeat.started"
	HeartbeatFinalized      EventType = "heartbeat.finalized"
	HeartbeatTerminated     EventType = "heartbeat.terminated"
	ExternalCallScheduled   EventType = "external_call.scheduled"
	ExternalCallResolved    EventType = "external_call.resolved"
	ExternalCallFailed      EventType = "external_call.failed"
	ToolExecutionStarted    EventType = "tool.started"
	ToolExecutionFinished   EventType = "tool.finished"
	MaintenanceRunCompleted EventType = "maintenance.completed"
)

// Event is the interface every hook event implements. Subscribers use Type
// to route without a type assertion on every branch, then switch on the
// concrete type for payload access.
type Event interface {
	Type() EventType
	HeartbeatID() string
	Timestamp() int64
}

type baseEvent struct {
	heartbeatID string
	timestamp   int64
}

func newBaseEvent(heartbeatID string) baseEvent {
	return baseEvent{heartbeatID: heartbeatID, timestamp: time.Now().UnixMilli()}
}

func (e baseEvent) HeartbeatID() string { return e.heartbeatID }
func (e baseEvent) Timestamp() int64    { return e.timestamp }

// HeartbeatStartedEvent fires when StartHeartbeat commits.
type HeartbeatStartedEvent struct {
	baseEvent
	InitialCallID string
}

func (HeartbeatStartedEvent) Type() EventType { return HeartbeatStarted }

// NewHeartbeatStartedEvent constructs a HeartbeatStartedEvent.
func NewHeartbeatStartedEvent(heartbeatID, initialCallID string) *HeartbeatStartedEvent {
	return &HeartbeatStartedEvent{baseEvent: newBaseEvent(heartbeatID), InitialCallID: initialCallID}
}

// HeartbeatFinalizedEvent fires when a heartbeat reaches outcome=finalized.
type HeartbeatFinalizedEvent struct {
	baseEvent
	MemoryID   string
	HaltReason string
}

func (HeartbeatFinalizedEvent) Type() EventType { return HeartbeatFinalized }

func NewHeartbeatFinalizedEvent(heartbeatID, memoryID, haltReason string) *HeartbeatFinalizedEvent {
	return &HeartbeatFinalizedEvent{baseEvent: newBaseEvent(heartbeatID), MemoryID: memoryID, HaltReason: haltReason}
}

// HeartbeatTerminatedEvent fires when a heartbeat's termination_confirm
// action commits terminate_agent.
type HeartbeatTerminatedEvent struct {
	baseEvent
	LastWill string
}

func (HeartbeatTerminatedEvent) Type() EventType { return HeartbeatTerminated }

func NewHeartbeatTerminatedEvent(heartbeatID, lastWill string) *HeartbeatTerminatedEvent {
	return &HeartbeatTerminatedEvent{baseEvent: newBaseEvent(heartbeatID), LastWill: lastWill}
}

// ExternalCallScheduledEvent fires whenever apply_heartbeat_decision
// dispatches a pending think or tool_use call, mirroring the teacher's
// ToolCallScheduledEvent shape but for broker-queued calls rather than
// in-process planner turns.
type ExternalCallScheduledEvent struct {
	baseEvent
	CallID   string
	CallType string
	Input    json.RawMessage
}

func (ExternalCallScheduledEvent) Type() EventType { return ExternalCallScheduled }

func NewExternalCallScheduledEvent(heartbeatID, callID, callType string, input json.RawMessage) *ExternalCallScheduledEvent {
	return &ExternalCallScheduledEvent{baseEvent: newBaseEvent(heartbeatID), CallID: callID, CallType: callType, Input: input}
}

// ExternalCallResolvedEvent fires after broker.ApplyResult commits,
// mirroring the teacher's ToolResultReceivedEvent shape.
type ExternalCallResolvedEvent struct {
	baseEvent
	CallID   string
	Output   json.RawMessage
	Duration time.Duration
}

func (ExternalCallResolvedEvent) Type() EventType { return ExternalCallResolved }

func NewExternalCallResolvedEvent(heartbeatID, callID string, output json.RawMessage, duration time.Duration) *ExternalCallResolvedEvent {
	return &ExternalCallResolvedEvent{baseEvent: newBaseEvent(heartbeatID), CallID: callID, Output: output, Duration: duration}
}

// ExternalCallFailedEvent fires after broker.FailCall commits.
type ExternalCallFailedEvent struct {
	baseEvent
	CallID     string
	Error      string
	RetryCount int
	DeadLetter bool
}

func (ExternalCallFailedEvent) Type() EventType { return ExternalCallFailed }

func NewExternalCallFailedEvent(heartbeatID, callID, errMsg string, retryCount int, deadLetter bool) *ExternalCallFailedEvent {
	return &ExternalCallFailedEvent{baseEvent: newBaseEvent(heartbeatID), CallID: callID, Error: errMsg, RetryCount: retryCount, DeadLetter: deadLetter}
}

// ToolExecutionStartedEvent fires when the tool registry begins executing a
// tool_use action's named tool, after policy has cleared it.
type ToolExecutionStartedEvent struct {
	baseEvent
	ToolName string
	CallID   string
}

func (ToolExecutionStartedEvent) Type() EventType { return ToolExecutionStarted }

func NewToolExecutionStartedEvent(heartbeatID, toolName, callID string) *ToolExecutionStartedEvent {
	return &ToolExecutionStartedEvent{baseEvent: newBaseEvent(heartbeatID), ToolName: toolName, CallID: callID}
}

// ToolExecutionFinishedEvent fires after a tool call returns, success or failure.
type ToolExecutionFinishedEvent struct {
	baseEvent
	ToolName    string
	CallID      string
	EnergySpent int
	Err         string
	Duration    time.Duration
}

func (ToolExecutionFinishedEvent) Type() EventType { return ToolExecutionFinished }

func NewToolExecutionFinishedEvent(heartbeatID, toolName, callID string, energySpent int, errMsg string, duration time.Duration) *ToolExecutionFinishedEvent {
	return &ToolExecutionFinishedEvent{
		baseEvent: newBaseEvent(heartbeatID), ToolName: toolName, CallID: callID,
		EnergySpent: energySpent, Err: errMsg, Duration: duration,
	}
}

// MaintenanceRunCompletedEvent fires after a maintenance cadence tick finishes.
type MaintenanceRunCompletedEvent struct {
	baseEvent
	ReapedCalls      int
	OutboxFlushed    int
	SubconsciousRan  bool
}

func (MaintenanceRunCompletedEvent) Type() EventType { return MaintenanceRunCompleted }

func NewMaintenanceRunCompletedEvent(reapedCalls, outboxFlushed int, subconsciousRan bool) *MaintenanceRunCompletedEvent {
	return &MaintenanceRunCompletedEvent{
		baseEvent:       newBaseEvent(""),
		ReapedCalls:     reapedCalls,
		OutboxFlushed:   outboxFlushed,
		SubconsciousRan: subconsciousRan,
	}
}
