// Package memory implements the memory tool family from §4.C: recall,
// remember, sense_memory_availability, explore_concept, get_procedures,
// get_strategies, create_goal, schedule_task, and queue_user_message. The
// last two mutate store state; queue_user_message is heartbeat-only.
package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/QuixiAI/Hexis/internal/tools"
)

// Store is the narrow slice of store.Adapter this package depends on,
// declared locally so the tools tree never imports store directly (the
// dependency runs the other way: store.ActiveBoundaries feeds back into the
// tools package through BoundariesFunc).
type Store interface {
	RememberMemory(ctx context.Context, kind, category, content string, trust float64, metadata json.RawMessage) (string, error)
	RecallMemories(ctx context.Context, category, query string, limit int) ([]Memory, error)
	SenseMemoryAvailability(ctx context.Context) (map[string]int, error)
	ExploreConcept(ctx context.Context, concept string, limit int) ([]Memory, error)
	GetProcedures(ctx context.Context, limit int) ([]Memory, error)
	GetStrategies(ctx context.Context, limit int) ([]Memory, error)
	CreateGoal(ctx context.Context, title, description, priority, source, parentGoalID string, dueAt *time.Time) (string, error)
	ScheduleTask(ctx context.Context, description string, dueAt time.Time, metadata json.RawMessage) (string, error)
	QueueUserMessage(ctx context.Context, content string) (string, error)
}

// Memory mirrors store.Memory's exported fields without importing the
// store package. A wiring-time adapter converts a real store.Memory into
// this shape (a 1:1 field copy) when implementing Store.
type Memory struct {
	ID        string
	Kind      string
	Category  string
	Content   string
	Trust     float64
	CreatedAt time.Time
}

func memoriesToOutput(mems []Memory) []map[string]any {
	out := make([]map[string]any, len(mems))
	for i, m := range mems {
		out[i] = map[string]any{
			"id": m.ID, "kind": m.Kind, "category": m.Category,
			"content": m.Content, "trust": m.Trust,
			"created_at": m.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}

// Recall is the `recall` tool: query by optional category and substring.
type Recall struct{ Store Store }

func (Recall) Spec() tools.Spec {
	return tools.Spec{
		Name:             "recall",
		Description:      "Recall memories matching a category and/or content query.",
		Category:         tools.CategoryMemory,
		EnergyCost:       1,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"category":{"type":"string"},"query":{"type":"string"},"limit":{"type":"integer"}},"required":[]}`),
	}
}

func (r Recall) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	category, _ := args["category"].(string)
	query, _ := args["query"].(string)
	limit := limitFromArgs(args)
	mems, err := r.Store.RecallMemories(ec.Go, category, query, limit)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"memories": memoriesToOutput(mems)}}, nil
}

// Remember is the `remember` tool: insert a new memory.
type Remember struct{ Store Store }

func (Remember) Spec() tools.Spec {
	return tools.Spec{
		Name:        "remember",
		Description: "Record a new memory.",
		Category:    tools.CategoryMemory,
		EnergyCost:  1,
		Parameters:  tools.MustSchema(`{"type":"object","properties":{"kind":{"type":"string"},"category":{"type":"string"},"content":{"type":"string"},"trust":{"type":"number"}},"required":["kind","content"]}`),
	}
}

func (r Remember) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	kind, _ := args["kind"].(string)
	category, _ := args["category"].(string)
	content, _ := args["content"].(string)
	trust := 0.5
	if v, ok := args["trust"].(float64); ok {
		trust = v
	}
	if kind == "" || content == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "kind and content are required")
	}
	id, err := r.Store.RememberMemory(ec.Go, kind, category, content, trust, nil)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"memory_id": id}}, nil
}

// SenseMemoryAvailability is the `sense_memory_availability` tool: a cheap
// pre-check of whether recall is likely to surface anything before an
// agent spends energy on a full query.
type SenseMemoryAvailability struct{ Store Store }

func (SenseMemoryAvailability) Spec() tools.Spec {
	return tools.Spec{
		Name:             "sense_memory_availability",
		Description:      "Report how many memories exist per category.",
		Category:         tools.CategoryMemory,
		EnergyCost:       0,
		IsReadOnly:       true,
		SupportsParallel: true,
	}
}

func (s SenseMemoryAvailability) Execute(ec *tools.ExecContext, _ map[string]any) (tools.Result, error) {
	counts, err := s.Store.SenseMemoryAvailability(ec.Go)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	byCategory := make(map[string]any, len(counts))
	for k, v := range counts {
		byCategory[k] = v
	}
	return tools.Result{Output: map[string]any{"counts_by_category": byCategory}}, nil
}

// ExploreConcept is the `explore_concept` tool: a broader recall variant not
// restricted to one category.
type ExploreConcept struct{ Store Store }

func (ExploreConcept) Spec() tools.Spec {
	return tools.Spec{
		Name:             "explore_concept",
		Description:      "Explore memories related to a concept across all categories.",
		Category:         tools.CategoryMemory,
		EnergyCost:       2,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"concept":{"type":"string"},"limit":{"type":"integer"}},"required":["concept"]}`),
	}
}

func (e ExploreConcept) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	concept, _ := args["concept"].(string)
	if concept == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "concept is required")
	}
	mems, err := e.Store.ExploreConcept(ec.Go, concept, limitFromArgs(args))
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"memories": memoriesToOutput(mems)}}, nil
}

// GetProcedures is the `get_procedures` tool.
type GetProcedures struct{ Store Store }

func (GetProcedures) Spec() tools.Spec {
	return tools.Spec{
		Name:             "get_procedures",
		Description:      "List memories of category procedure.",
		Category:         tools.CategoryMemory,
		EnergyCost:       1,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"limit":{"type":"integer"}}}`),
	}
}

func (g GetProcedures) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	mems, err := g.Store.GetProcedures(ec.Go, limitFromArgs(args))
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"memories": memoriesToOutput(mems)}}, nil
}

// GetStrategies is the `get_strategies` tool.
type GetStrategies struct{ Store Store }

func (GetStrategies) Spec() tools.Spec {
	return tools.Spec{
		Name:             "get_strategies",
		Description:      "List memories of category strategy.",
		Category:         tools.CategoryMemory,
		EnergyCost:       1,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"limit":{"type":"integer"}}}`),
	}
}

func (g GetStrategies) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	mems, err := g.Store.GetStrategies(ec.Go, limitFromArgs(args))
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"memories": memoriesToOutput(mems)}}, nil
}

// CreateGoal is the `create_goal` tool.
type CreateGoal struct{ Store Store }

func (CreateGoal) Spec() tools.Spec {
	return tools.Spec{
		Name:        "create_goal",
		Description: "Create a new goal.",
		Category:    tools.CategoryMemory,
		EnergyCost:  2,
		Parameters:  tools.MustSchema(`{"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"},"priority":{"type":"string"},"source":{"type":"string"},"parent_goal_id":{"type":"string"}},"required":["title"]}`),
	}
}

func (c CreateGoal) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	title, _ := args["title"].(string)
	if title == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "title is required")
	}
	description, _ := args["description"].(string)
	priority, _ := args["priority"].(string)
	source, _ := args["source"].(string)
	parentGoalID, _ := args["parent_goal_id"].(string)
	id, err := c.Store.CreateGoal(ec.Go, title, description, priority, source, parentGoalID, nil)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"goal_id": id}}, nil
}

// ScheduleTask is the `schedule_task` tool.
type ScheduleTask struct{ Store Store }

func (ScheduleTask) Spec() tools.Spec {
	return tools.Spec{
		Name:        "schedule_task",
		Description: "Record a task with a due time; it is stored as pending and not acted on automatically.",
		Category:    tools.CategoryMemory,
		EnergyCost:  2,
		Parameters:  tools.MustSchema(`{"type":"object","properties":{"description":{"type":"string"},"due_at":{"type":"string","format":"date-time"}},"required":["description","due_at"]}`),
	}
}

func (s ScheduleTask) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	description, _ := args["description"].(string)
	dueStr, _ := args["due_at"].(string)
	if description == "" || dueStr == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "description and due_at are required")
	}
	dueAt, err := time.Parse(time.RFC3339, dueStr)
	if err != nil {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "due_at must be RFC3339: %s", err)
	}
	id, err := s.Store.ScheduleTask(ec.Go, description, dueAt, nil)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"task_id": id}}, nil
}

// QueueUserMessage is the `queue_user_message` tool: heartbeat-only,
// enqueues an outbox message.
type QueueUserMessage struct{ Store Store }

func (QueueUserMessage) Spec() tools.Spec {
	return tools.Spec{
		Name:            "queue_user_message",
		Description:     "Queue a message to the user, to be delivered via the outbox.",
		Category:        tools.CategoryMemory,
		EnergyCost:      1,
		AllowedContexts: map[tools.Context]bool{tools.ContextHeartbeat: true},
		Parameters:      tools.MustSchema(`{"type":"object","properties":{"content":{"type":"string"}},"required":["content"]}`),
	}
}

func (q QueueUserMessage) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "content is required")
	}
	id, err := q.Store.QueueUserMessage(ec.Go, content)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"outbox_id": id}}, nil
}

func limitFromArgs(args map[string]any) int {
	if v, ok := args["limit"].(float64); ok && v > 0 {
		return int(v)
	}
	return 0
}
