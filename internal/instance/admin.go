package instance

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/QuixiAI/Hexis/internal/store"
)

// SubstrateAdmin is the narrow set of operations create_instance,
// clone_instance, and delete_instance need against a Postgres server,
// declared locally so the lifecycle operations below can be tested against a
// fake rather than a live database.
type SubstrateAdmin interface {
	DatabaseExists(ctx context.Context, adminDSN, database string) (bool, error)
	CreateDatabase(ctx context.Context, adminDSN, database string) error
	DropDatabase(ctx context.Context, adminDSN, database string) error
	ApplySchema(ctx context.Context, targetDSN string) error
	Ping(ctx context.Context, targetDSN string) error
	Dump(ctx context.Context, srcDSN string) (io.ReadCloser, error)
	Restore(ctx context.Context, dstDSN string, r io.Reader) error
}

// PGAdmin implements SubstrateAdmin against a real Postgres server: the
// catalogue operations go over pgx directly, while dump/restore shell out to
// the pg_dump/pg_restore binaries (the control plane does not reimplement
// the wire-level dump format).
type PGAdmin struct{}

func (PGAdmin) DatabaseExists(ctx context.Context, adminDSN, database string) (bool, error) {
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return false, fmt.Errorf("instance: connect admin catalogue: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", database).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("instance: check database exists: %w", err)
	}
	return exists, nil
}

func (PGAdmin) CreateDatabase(ctx context.Context, adminDSN, database string) error {
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("instance: connect admin catalogue: %w", err)
	}
	defer conn.Close(ctx)

	// CREATE DATABASE cannot run inside a transaction or take a parameter, so
	// the name is interpolated after quoting it as a Postgres identifier.
	_, err = conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{database}.Sanitize())
	if err != nil {
		return fmt.Errorf("instance: create database %q: %w", database, err)
	}
	return nil
}

func (PGAdmin) DropDatabase(ctx context.Context, adminDSN, database string) error {
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("instance: connect admin catalogue: %w", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{database}.Sanitize()+" WITH (FORCE)")
	if err != nil {
		return fmt.Errorf("instance: drop database %q: %w", database, err)
	}
	return nil
}

// ApplySchema runs every embedded schema file against targetDSN in lex
// order, per §4.G's "apply schema files in lex order".
func (PGAdmin) ApplySchema(ctx context.Context, targetDSN string) error {
	conn, err := pgx.Connect(ctx, targetDSN)
	if err != nil {
		return fmt.Errorf("instance: connect target substrate: %w", err)
	}
	defer conn.Close(ctx)

	files, err := store.SchemaFiles()
	if err != nil {
		return fmt.Errorf("instance: list schema files: %w", err)
	}
	for _, name := range files {
		sql, err := store.ReadSchemaFile(name)
		if err != nil {
			return fmt.Errorf("instance: read schema file %q: %w", name, err)
		}
		if _, err := conn.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("instance: apply schema file %q: %w", name, err)
		}
	}
	return nil
}

func (PGAdmin) Ping(ctx context.Context, targetDSN string) error {
	conn, err := pgx.Connect(ctx, targetDSN)
	if err != nil {
		return fmt.Errorf("instance: ping substrate: %w", err)
	}
	defer conn.Close(ctx)
	return conn.Ping(ctx)
}

// Dump streams a pg_dump of srcDSN through a pipe; the caller must Close the
// returned reader to release the subprocess once it is done reading.
func (PGAdmin) Dump(ctx context.Context, srcDSN string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "pg_dump", "--format=custom", "--dbname="+srcDSN)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("instance: pg_dump stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("instance: start pg_dump: %w", err)
	}
	return &cmdReadCloser{ReadCloser: stdout, cmd: cmd}, nil
}

// Restore streams r into pg_restore against dstDSN.
func (PGAdmin) Restore(ctx context.Context, dstDSN string, r io.Reader) error {
	cmd := exec.CommandContext(ctx, "pg_restore", "--format=custom", "--dbname="+dstDSN, "--no-owner")
	cmd.Stdin = r
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("instance: pg_restore: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// cmdReadCloser ties a subprocess's stdout pipe to the subprocess's own
// lifecycle, so Close waits for pg_dump to exit cleanly.
type cmdReadCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (c *cmdReadCloser) Close() error {
	_ = c.ReadCloser.Close()
	return c.cmd.Wait()
}
