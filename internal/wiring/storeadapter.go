package wiring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/tools"
	memtool "github.com/QuixiAI/Hexis/internal/tools/memory"
)

// memoryStoreAdapter satisfies memory.Store over a *store.Adapter,
// converting store.Memory (which carries extra boundary-only fields) down
// to the tool package's narrower mirrored Memory shape, per that package's
// own documented convention.
type memoryStoreAdapter struct {
	store *store.Adapter
}

// NewMemoryStore wraps a store.Adapter for the memory tool family.
func NewMemoryStore(s *store.Adapter) memtool.Store {
	return memoryStoreAdapter{store: s}
}

func (a memoryStoreAdapter) RememberMemory(ctx context.Context, kind, category, content string, trust float64, metadata json.RawMessage) (string, error) {
	return a.store.RememberMemory(ctx, kind, category, content, trust, metadata)
}

func (a memoryStoreAdapter) RecallMemories(ctx context.Context, category, query string, limit int) ([]memtool.Memory, error) {
	mems, err := a.store.RecallMemories(ctx, category, query, limit)
	if err != nil {
		return nil, err
	}
	return convertMemories(mems), nil
}

func (a memoryStoreAdapter) SenseMemoryAvailability(ctx context.Context) (map[string]int, error) {
	return a.store.SenseMemoryAvailability(ctx)
}

func (a memoryStoreAdapter) ExploreConcept(ctx context.Context, concept string, limit int) ([]memtool.Memory, error) {
	mems, err := a.store.ExploreConcept(ctx, concept, limit)
	if err != nil {
		return nil, err
	}
	return convertMemories(mems), nil
}

func (a memoryStoreAdapter) GetProcedures(ctx context.Context, limit int) ([]memtool.Memory, error) {
	mems, err := a.store.GetProcedures(ctx, limit)
	if err != nil {
		return nil, err
	}
	return convertMemories(mems), nil
}

func (a memoryStoreAdapter) GetStrategies(ctx context.Context, limit int) ([]memtool.Memory, error) {
	mems, err := a.store.GetStrategies(ctx, limit)
	if err != nil {
		return nil, err
	}
	return convertMemories(mems), nil
}

func (a memoryStoreAdapter) CreateGoal(ctx context.Context, title, description, priority, source, parentGoalID string, dueAt *time.Time) (string, error) {
	return a.store.CreateGoal(ctx, nil, title, description, priority, source, parentGoalID, dueAt)
}

func (a memoryStoreAdapter) ScheduleTask(ctx context.Context, description string, dueAt time.Time, metadata json.RawMessage) (string, error) {
	return a.store.ScheduleTask(ctx, description, dueAt, metadata)
}

func (a memoryStoreAdapter) QueueUserMessage(ctx context.Context, content string) (string, error) {
	return a.store.QueueUserMessage(ctx, content)
}

func convertMemories(mems []store.Memory) []memtool.Memory {
	out := make([]memtool.Memory, len(mems))
	for i, m := range mems {
		out[i] = memtool.Memory{
			ID:        m.ID,
			Kind:      m.Kind,
			Category:  m.Category,
			Content:   m.Content,
			Trust:     m.Trust,
			CreatedAt: m.CreatedAt,
		}
	}
	return out
}

// Boundaries adapts store.Adapter.ActiveBoundaries to tools.BoundariesFunc,
// per context.go's documented wiring convention.
func Boundaries(s *store.Adapter) tools.BoundariesFunc {
	return func(ctx context.Context) ([]tools.Boundary, error) {
		bs, err := s.ActiveBoundaries(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]tools.Boundary, len(bs))
		for i, b := range bs {
			out[i] = tools.Boundary{
				RestrictsTools:      b.RestrictsTools,
				RestrictsCategories: b.RestrictsCategories,
				Reason:              b.Reason,
			}
		}
		return out, nil
	}
}
