package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// Memory is the minimal memory-substrate record the control plane reads and
// writes. The retrieval algorithm that ranks or embeds these is an external
// collaborator; this type only carries the fields the memory tool family
// and worldview protocol need.
type Memory struct {
	ID                  string
	Kind                string
	Category            string
	Content             string
	Trust               float64
	Metadata            json.RawMessage
	RestrictsTools      []string
	RestrictsCategories []string
	CreatedAt           time.Time
}

const memoryColumns = "id, kind, category, content, trust, metadata, restricts_tools, restricts_categories, created_at"

func scanMemory(row pgx.Row) (Memory, error) {
	var m Memory
	err := row.Scan(&m.ID, &m.Kind, &m.Category, &m.Content, &m.Trust, &m.Metadata, &m.RestrictsTools, &m.RestrictsCategories, &m.CreatedAt)
	return m, err
}

// RememberMemory inserts a new memory record. Backs the `remember` tool.
func (a *Adapter) RememberMemory(ctx context.Context, kind, category, content string, trust float64, metadata json.RawMessage) (string, error) {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	var id string
	err := a.pool.QueryRow(ctx, `
		INSERT INTO memories (kind, category, content, trust, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, kind, category, content, trust, metadata).Scan(&id)
	if err != nil {
		return "", xerrors.Wrap("store.write_failed", err)
	}
	return id, nil
}

// RecallMemories returns the most recent memories matching an optional
// category filter and a case-insensitive substring search over content.
// Backs the `recall` tool; ranking beyond recency is the memory substrate
// collaborator's concern, out of scope here.
func (a *Adapter) RecallMemories(ctx context.Context, category, query string, limit int) ([]Memory, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := a.pool.Query(ctx, `
		SELECT `+memoryColumns+`
		FROM memories
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR content ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3
	`, category, query, limit)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, xerrors.Wrap("store.scan_failed", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SenseMemoryAvailability reports how many memories exist per category,
// letting the heartbeat decision weigh whether recall is likely to surface
// anything before spending energy on it. Backs `sense_memory_availability`.
func (a *Adapter) SenseMemoryAvailability(ctx context.Context) (map[string]int, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT COALESCE(category, 'uncategorized'), count(*) FROM memories GROUP BY category
	`)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, xerrors.Wrap("store.scan_failed", err)
		}
		out[cat] = n
	}
	return out, rows.Err()
}

// ExploreConcept returns memories whose content mentions the given concept,
// across any category. Backs `explore_concept`, a broader recall variant
// that is not restricted to one category the way `get_procedures` or
// `get_strategies` are.
func (a *Adapter) ExploreConcept(ctx context.Context, concept string, limit int) ([]Memory, error) {
	return a.RecallMemories(ctx, "", concept, limit)
}

// GetProcedures returns memories of category "procedure". Backs
// `get_procedures`.
func (a *Adapter) GetProcedures(ctx context.Context, limit int) ([]Memory, error) {
	return a.RecallMemories(ctx, "procedure", "", limit)
}

// GetStrategies returns memories of category "strategy". Backs
// `get_strategies`.
func (a *Adapter) GetStrategies(ctx context.Context, limit int) ([]Memory, error) {
	return a.RecallMemories(ctx, "strategy", "", limit)
}

// CreateGoal inserts a new goal row. Backs the `create_goal` tool, and is
// reused by ApplyExternalCallResult for brainstorm_goals side effects.
func (a *Adapter) CreateGoal(ctx context.Context, q querier, title, description, priority, source, parentGoalID string, dueAt *time.Time) (string, error) {
	if q == nil {
		q = a.pool
	}
	if priority == "" {
		priority = "queued"
	}
	if source == "" {
		source = "curiosity"
	}
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO goals (title, description, priority, source, parent_goal_id, due_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6)
		RETURNING id
	`, title, description, priority, source, parentGoalID, dueAt).Scan(&id)
	if err != nil {
		return "", xerrors.Wrap("store.write_failed", err)
	}
	return id, nil
}

// ScheduleTask inserts a pending scheduled_tasks row. Maintenance only counts
// due rows; nothing promotes a row into a goal or message. Backs the
// `schedule_task` tool.
func (a *Adapter) ScheduleTask(ctx context.Context, description string, dueAt time.Time, metadata json.RawMessage) (string, error) {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	var id string
	err := a.pool.QueryRow(ctx, `
		INSERT INTO scheduled_tasks (description, due_at, metadata)
		VALUES ($1, $2, $3)
		RETURNING id
	`, description, dueAt, metadata).Scan(&id)
	if err != nil {
		return "", xerrors.Wrap("store.write_failed", err)
	}
	return id, nil
}

// QueueUserMessage enqueues an outbox message directly (rather than an
// external call: the §3 ExternalCall.call_type enum is closed to
// think/tool_use/embed). Backs the heartbeat-only `queue_user_message` tool.
func (a *Adapter) QueueUserMessage(ctx context.Context, content string) (string, error) {
	payload, err := json.Marshal(map[string]any{"content": content})
	if err != nil {
		return "", xerrors.Wrap("store.write_failed", err)
	}
	var id string
	werr := a.pool.QueryRow(ctx, `
		INSERT INTO outbox_messages (kind, payload)
		VALUES ('user_message', $1)
		RETURNING id
	`, payload).Scan(&id)
	if werr != nil {
		return "", xerrors.Wrap("store.write_failed", werr)
	}
	return id, nil
}
