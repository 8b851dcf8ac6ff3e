// Package integration holds end-to-end scenarios that exercise the control
// plane against a real Postgres instance rather than the in-memory fakes
// used by the package-level unit tests. Each test starts its own disposable
// container via testcontainers-go and tears it down when the test finishes.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/QuixiAI/Hexis/internal/broker"
	"github.com/QuixiAI/Hexis/internal/heartbeat"
	"github.com/QuixiAI/Hexis/internal/hooks"
	"github.com/QuixiAI/Hexis/internal/instance"
	"github.com/QuixiAI/Hexis/internal/store"
)

// startPostgres boots a disposable Postgres container, applies the embedded
// schema against it, and returns a connected pool plus a teardown func. It
// skips the calling test (rather than failing it) when Docker is not
// reachable, mirroring the graceful degradation the example pack's own
// Mongo-backed integration suite uses for an unavailable daemon.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	const (
		user     = "hexis"
		password = "hexis"
		dbname   = "hexis"
	)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": password,
			"POSTGRES_DB":       dbname,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}

	var (
		container testcontainers.Container
		startErr  error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				startErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		container, startErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if startErr != nil {
		t.Skipf("docker not available, skipping integration test: %v", startErr)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port.Port(), dbname)

	require.NoError(t, (instance.PGAdmin{}).ApplySchema(ctx, dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func configureAgent(t *testing.T, pool *pgxpool.Pool, st *store.Adapter) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.SetConfig(ctx, "agent.is_configured", json.RawMessage("true")))
	_, err := pool.Exec(ctx, `UPDATE heartbeat_state SET interval_minutes = 0 WHERE id = TRUE`)
	require.NoError(t, err)
}

// TestHeartbeatEndToEndWithOneBrainstorm is scenario S1: a fresh configured
// instance runs one heartbeat whose decision brainstorms two goals and then
// rests. It should finalize with both goal memories created and a
// finalization summary memory written.
func TestHeartbeatEndToEndWithOneBrainstorm(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	st := store.New(pool)
	configureAgent(t, pool, st)

	brk := broker.New(pool, st)

	decision := store.Decision{
		Reasoning: "seed goals",
		Actions: []store.Action{
			{Action: "brainstorm_goals", Params: map[string]any{}},
			{Action: "rest", Params: map[string]any{}},
		},
		GoalChanges: []store.GoalChange{},
	}
	decisionJSON, err := json.Marshal(decision)
	require.NoError(t, err)

	brainstormOutput := json.RawMessage(`{"goals":[{"title":"Goal A T","source":"curiosity","priority":"queued"},{"title":"Goal B T","source":"curiosity"}]}`)

	driver := &heartbeat.Driver{
		Store:  st,
		Broker: brk,
		Think: func(ctx context.Context, kind string, turnContext json.RawMessage, params map[string]any) (json.RawMessage, error) {
			switch kind {
			case "heartbeat_decision":
				return decisionJSON, nil
			case "brainstorm_goals":
				return brainstormOutput, nil
			default:
				return json.RawMessage(`{}`), nil
			}
		},
		Bus: hooks.NewBus(),
	}

	outcome, err := driver.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, outcome.Completed)
	require.NotEmpty(t, outcome.MemoryID)

	var goalCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM goals WHERE title IN ('Goal A T', 'Goal B T')`).Scan(&goalCount))
	require.Equal(t, 2, goalCount)

	var summaryCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM memories WHERE kind = 'heartbeat_summary'`).Scan(&summaryCount))
	require.Equal(t, 1, summaryCount)

	var heartbeatOutcome string
	require.NoError(t, pool.QueryRow(ctx, `SELECT outcome::text FROM heartbeats`).Scan(&heartbeatOutcome))
	require.Equal(t, "finalized", heartbeatOutcome)
}

// TestTwoWorkersOneQueue is scenario S6: ten pending external calls drained
// by two concurrent brokers sharing the same queue must each transition to
// complete exactly once, with no row ever observed in processing by both
// workers at once.
func TestTwoWorkersOneQueue(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	st := store.New(pool)
	brk1 := broker.New(pool, st)
	brk2 := broker.New(pool, st)

	const n = 10
	for i := 0; i < n; i++ {
		_, err := pool.Exec(ctx, `INSERT INTO external_calls (call_type, input) VALUES ('tool_use', '{}')`)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var applied int

	drain := func(brk *broker.Broker) {
		defer wg.Done()
		for {
			call, err := brk.ClaimPendingCall(ctx)
			require.NoError(t, err)
			if call == nil {
				return
			}
			_, err = brk.ApplyResult(ctx, call.ID, json.RawMessage(`{"energy_spent":0}`))
			require.NoError(t, err)
			mu.Lock()
			applied++
			mu.Unlock()
		}
	}

	wg.Add(2)
	go drain(brk1)
	go drain(brk2)
	wg.Wait()

	require.Equal(t, n, applied)

	var completeCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM external_calls WHERE status = 'complete'`).Scan(&completeCount))
	require.Equal(t, n, completeCount)

	var processingCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM external_calls WHERE status = 'processing'`).Scan(&processingCount))
	require.Equal(t, 0, processingCount)
}

// TestDeliberateTransformationSuccess is scenario S2: a belief whose
// change_requires is deliberate_transformation moves through
// begin_exploration -> record_effort -> attempt_transformation, all driven
// by one reflect call's worldview_updates, the only control-plane entry
// point into the §4.D.4 sub-protocol.
func TestDeliberateTransformationSuccess(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	st := store.New(pool)
	brk := broker.New(pool, st)

	require.NoError(t, st.SetConfig(ctx, "transformation.personality",
		json.RawMessage(`{"stability":0.99,"evidence_threshold":0.1,"min_reflections":1,"min_heartbeats":0}`)))

	var beliefID string
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO worldview_beliefs (subcategory, origin, content, change_requires)
		VALUES ('personality', 'user_initialized', 'Original belief content', 'deliberate_transformation')
		RETURNING id
	`).Scan(&beliefID))

	var callID string
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO external_calls (call_type, input) VALUES ('think', '{"kind":"reflect"}') RETURNING id
	`).Scan(&callID))

	call, err := brk.ClaimCallByID(ctx, callID)
	require.NoError(t, err)
	require.NotNil(t, call)

	output, err := json.Marshal(map[string]any{
		"insights": []string{},
		"worldview_updates": []map[string]any{
			{"belief_id": beliefID, "op": "begin_exploration", "goal_id": "exploration-goal-1"},
			{"belief_id": beliefID, "op": "record_effort", "kind": "reflect", "notes": "high-trust evidence linked", "evidence": []string{"memory-evidence-1"}},
			{"belief_id": beliefID, "op": "attempt_transformation", "new_content": "Updated belief content", "mode": "shift", "heartbeats_since": 0, "evidence_trust": 1.0, "stability": 1.0},
		},
	})
	require.NoError(t, err)

	_, err = brk.ApplyResult(ctx, callID, output)
	require.NoError(t, err)

	var content string
	var tsRaw json.RawMessage
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT content, transformation_state FROM worldview_beliefs WHERE id = $1::uuid
	`, beliefID).Scan(&content, &tsRaw))
	require.Equal(t, "Updated belief content", content)

	var ts store.TransformationState
	require.NoError(t, json.Unmarshal(tsRaw, &ts))
	require.False(t, ts.ActiveExploration)
	require.NotEmpty(t, ts.ChangeHistory)
}
