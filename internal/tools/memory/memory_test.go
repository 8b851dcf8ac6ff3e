package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

type fakeStore struct {
	memories []Memory
	goalID   string
	taskID   string
	outboxID string
	err      error
}

func (f *fakeStore) RememberMemory(ctx context.Context, kind, category, content string, trust float64, metadata json.RawMessage) (string, error) {
	return "mem-new", f.err
}
func (f *fakeStore) RecallMemories(ctx context.Context, category, query string, limit int) ([]Memory, error) {
	return f.memories, f.err
}
func (f *fakeStore) SenseMemoryAvailability(ctx context.Context) (map[string]int, error) {
	return map[string]int{"fact": 3}, f.err
}
func (f *fakeStore) ExploreConcept(ctx context.Context, concept string, limit int) ([]Memory, error) {
	return f.memories, f.err
}
func (f *fakeStore) GetProcedures(ctx context.Context, limit int) ([]Memory, error) {
	return f.memories, f.err
}
func (f *fakeStore) GetStrategies(ctx context.Context, limit int) ([]Memory, error) {
	return f.memories, f.err
}
func (f *fakeStore) CreateGoal(ctx context.Context, title, description, priority, source, parentGoalID string, dueAt *time.Time) (string, error) {
	return f.goalID, f.err
}
func (f *fakeStore) ScheduleTask(ctx context.Context, description string, dueAt time.Time, metadata json.RawMessage) (string, error) {
	return f.taskID, f.err
}
func (f *fakeStore) QueueUserMessage(ctx context.Context, content string) (string, error) {
	return f.outboxID, f.err
}

func TestRecallReturnsMemories(t *testing.T) {
	store := &fakeStore{memories: []Memory{{ID: "m1", Kind: "fact", Content: "the sky is blue", CreatedAt: time.Unix(0, 0).UTC()}}}
	res, err := Recall{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{})
	require.NoError(t, err)
	mems := res.Output["memories"].([]map[string]any)
	require.Len(t, mems, 1)
	require.Equal(t, "m1", mems[0]["id"])
}

func TestRememberRequiresKindAndContent(t *testing.T) {
	store := &fakeStore{}
	_, err := Remember{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"kind": "fact"})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}

func TestRememberHappyPath(t *testing.T) {
	store := &fakeStore{}
	res, err := Remember{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"kind": "fact", "content": "x"})
	require.NoError(t, err)
	require.Equal(t, "mem-new", res.Output["memory_id"])
}

func TestCreateGoalRequiresTitle(t *testing.T) {
	store := &fakeStore{}
	_, err := CreateGoal{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}

func TestScheduleTaskRejectsBadTimestamp(t *testing.T) {
	store := &fakeStore{}
	_, err := ScheduleTask{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{
		"description": "follow up", "due_at": "not-a-time",
	})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}

func TestScheduleTaskHappyPath(t *testing.T) {
	store := &fakeStore{taskID: "task-1"}
	res, err := ScheduleTask{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{
		"description": "follow up", "due_at": time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Equal(t, "task-1", res.Output["task_id"])
}

func TestQueueUserMessageRequiresContent(t *testing.T) {
	store := &fakeStore{}
	_, err := QueueUserMessage{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}

func TestSenseMemoryAvailabilityReportsCounts(t *testing.T) {
	store := &fakeStore{}
	res, err := SenseMemoryAvailability{Store: store}.Execute(&tools.ExecContext{Go: context.Background()}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.Output["counts_by_category"].(map[string]any)["fact"])
}
