package wiring

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// connectPostgres builds a pool from the POSTGRES_* environment variables
// (spec.md §6), retrying until POSTGRES_WAIT_SECONDS elapses so a worker
// started alongside a still-booting database container does not exit
// immediately.
func connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		getenv("POSTGRES_USER", "hexis"),
		getenv("POSTGRES_PASSWORD", ""),
		getenv("POSTGRES_HOST", "localhost"),
		getenvInt("POSTGRES_PORT", 43815),
		getenv("POSTGRES_DB", "hexis"),
	)

	waitSecs := getenvInt("POSTGRES_WAIT_SECONDS", 30)
	deadline := time.Now().Add(time.Duration(waitSecs) * time.Second)

	var lastErr error
	for {
		pool, err := pgxpool.New(ctx, dsn)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				return pool, nil
			} else {
				lastErr = pingErr
				pool.Close()
			}
		} else {
			lastErr = err
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("postgres unreachable after %ds: %w", waitSecs, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
