// Package store wraps a pooled PostgreSQL connection with the thin
// query surface the pipeline stages need: parameterized execute/fetch
// helpers and a scoped transaction, following the repository pattern used
// throughout this codebase's other data-access packages.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Gateway is a bounded, thread-safe connection pool over PostgreSQL.
type Gateway struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Gateway, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Gateway{pool: pool}, nil
}

// Pool exposes the underlying pool for packages that need typed Scan calls
// beyond the generic helpers below (e.g. joining several columns at once).
func (g *Gateway) Pool() *pgxpool.Pool {
	return g.pool
}

// Close closes the pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// Healthcheck verifies the pool can still serve a trivial query.
func (g *Gateway) Healthcheck(ctx context.Context) error {
	var one int
	err := g.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
	if err != nil {
		return fmt.Errorf("store: healthcheck: %w", err)
	}
	if one != 1 {
		return fmt.Errorf("store: healthcheck: unexpected result %d", one)
	}
	return nil
}

// Execute runs a statement with autocommit and returns the affected
// row count.
func (g *Gateway) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := g.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FetchRow is satisfied by pgx.Row; kept as an alias so callers don't need
// to import pgx directly just to call Scan.
type FetchRow = pgx.Row

// FetchOne runs a query expected to return at most one row.
func (g *Gateway) FetchOne(ctx context.Context, sql string, args ...any) FetchRow {
	return g.pool.QueryRow(ctx, sql, args...)
}

// FetchAll runs a query and returns the resulting rows for iteration.
// Callers must Close() the returned Rows.
func (g *Gateway) FetchAll(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return g.pool.Query(ctx, sql, args...)
}

// FetchVal runs a query expected to return a single scalar column.
func (g *Gateway) FetchVal(ctx context.Context, dst any, sql string, args ...any) error {
	return g.pool.QueryRow(ctx, sql, args...).Scan(dst)
}

// Tx is a scoped transaction: commits on normal return, rolls back if fn
// returns an error or panics.
func (g *Gateway) Tx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return err
}

// ErrNoRows re-exports pgx.ErrNoRows so callers don't need the pgx import
// just to classify "not found".
var ErrNoRows = pgx.ErrNoRows
