package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the query capability shared by *pgxpool.Pool and pgx.Tx. Ledger and
// reconciliation operations take it as an explicit argument so the
// transaction boundary is part of every function's contract.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor begins transactions for service-level units of work. Services
// depend on it instead of the concrete pool so their workflows can run
// against in-memory stores in tests.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx DB) error) error
}

type poolTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor wraps a pgx pool as a Transactor.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return poolTransactor{pool: pool}
}

func (p poolTransactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx DB) error) error {
	return WithTx(ctx, p.pool, fn)
}

// WithTx executes a function within a ReadCommitted transaction. Either
// everything the callback writes commits, or none of it does. Row-level
// FOR UPDATE locks carry the serialization burden; ReadCommitted keeps a
// per-statement snapshot, so the entry-number re-read after a unique
// violation can see the competing writer's committed row.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx DB) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
