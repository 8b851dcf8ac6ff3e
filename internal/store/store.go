package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// Adapter is the thin typed façade over the durable store described in
// spec.md §4.A. It wraps a pgx connection pool and exposes one method per
// named store operation. Every method is atomic with respect to its
// declared side effects; multi-statement operations run inside a single
// pgx.Tx.
type Adapter struct {
	pool *pgxpool.Pool
}

// New wraps an existing pgx pool. Callers typically construct the pool via
// pgxpool.New(ctx, dsn) and pass it here.
func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool}
}

// Pool exposes the underlying pool for callers (the broker package) that
// need to compose their own transactions against the same tables.
func (a *Adapter) Pool() *pgxpool.Pool { return a.pool }

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting every
// method below run either standalone or as part of a caller-supplied
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetConfig implements config.Store.
func (a *Adapter) GetConfig(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	err := a.pool.QueryRow(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap("store.query_failed", err)
	}
	return raw, true, nil
}

// SetConfig implements config.Store.
func (a *Adapter) SetConfig(ctx context.Context, key string, value json.RawMessage) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return xerrors.Wrap("store.write_failed", err)
	}
	return nil
}

// AllConfig implements config.Store.
func (a *Adapter) AllConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := a.pool.Query(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, xerrors.Wrap("store.query_failed", err)
	}
	defer rows.Close()
	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var val json.RawMessage
		if err := rows.Scan(&key, &val); err != nil {
			return nil, xerrors.Wrap("store.scan_failed", err)
		}
		out[key] = val
	}
	return out, rows.Err()
}
