package wiring

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuixiAI/Hexis/internal/instance"
	"github.com/QuixiAI/Hexis/internal/store"
)

// DefaultRegistry opens the instance registry at its default location
// (~/.hexis/instances.json), honored by every CLI subcommand that manages
// instances.
func DefaultRegistry() (*instance.Registry, error) {
	path, err := instance.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("wiring: resolve instance registry path: %w", err)
	}
	return instance.NewRegistry(path), nil
}

// DefaultLifecycle wires an instance.Lifecycle over the real PGAdmin and a
// StoreOpener backed by pgxpool + store.New.
func DefaultLifecycle(registry *instance.Registry) *instance.Lifecycle {
	opener := instance.OpenStoreViaPool(func(pool *pgxpool.Pool) instance.Store {
		return instanceStoreAdapter{store.New(pool)}
	})
	return instance.NewLifecycle(registry, opener)
}

// instanceStoreAdapter narrows *store.Adapter down to instance.Store's
// five-method surface.
type instanceStoreAdapter struct {
	*store.Adapter
}

// ConnectDSN dials a standalone pool against dsn, for CLI commands (status,
// config show/validate) that need one-off access to an instance's substrate
// outside the worker's long-lived pool.
func ConnectDSN(ctx context.Context, dsn string) (*pgxpool.Pool, *store.Adapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("wiring: connect instance substrate: %w", err)
	}
	return pool, store.New(pool), nil
}
