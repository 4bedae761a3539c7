// Package postgres provides a Postgres-backed run metadata reader.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/shotprogress/internal/metadata"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "work_items"

// Config controls the connection pool used for metadata lookups.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Reader looks up run counters in a table shaped like
//
//	CREATE TABLE work_items (handle text PRIMARY KEY, run_number int NOT NULL, n_runs int NOT NULL);
type Reader struct {
	pool  queryCloser
	query string
}

// New connects to Postgres using cfg.
func New(ctx context.Context, cfg Config) (*Reader, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("metadata.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	reader, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return reader, nil
}

// NewWithPool constructs a Reader from an existing pool (primarily for testing).
func NewWithPool(pool queryCloser, table string) (*Reader, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Reader{
		pool:  pool,
		query: fmt.Sprintf("SELECT run_number, n_runs FROM %s WHERE handle = $1", table),
	}, nil
}

// ReadRuns fetches the counters stored for handle.
func (r *Reader) ReadRuns(ctx context.Context, handle string) (metadata.Runs, error) {
	var runs metadata.Runs
	err := r.pool.QueryRow(ctx, r.query, handle).Scan(&runs.Current, &runs.Total)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return metadata.Runs{}, fmt.Errorf("%w: handle %q not found", metadata.ErrUnavailable, handle)
	case err != nil:
		return metadata.Runs{}, metadata.Unavailable(handle, fmt.Errorf("query work item: %w", err))
	}
	if err := runs.Validate(); err != nil {
		return metadata.Runs{}, metadata.Unavailable(handle, err)
	}
	return runs, nil
}

// Close releases the pool.
func (r *Reader) Close() {
	r.pool.Close()
}
