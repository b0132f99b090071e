package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// ContextWithTx binds a transaction to the context so nested WithTx
// calls join it instead of opening their own.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction the context is bound to, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// WithTx runs fn inside a repeatable-read transaction bound to the
// context fn receives. When the context already carries a transaction,
// fn joins it through a savepoint rather than opening a second one, so
// a document action and the journal entries it books commit or roll
// back as a unit. Repeatable read keeps balance checks and status flips
// consistent within one posting.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if outer, ok := TxFromContext(ctx); ok {
		nested, err := outer.Begin(ctx)
		if err != nil {
			return fmt.Errorf("platform/db: begin savepoint: %w", err)
		}
		if err := fn(ContextWithTx(ctx, nested), nested); err != nil {
			_ = nested.Rollback(ctx)
			return err
		}
		if err := nested.Commit(ctx); err != nil {
			_ = nested.Rollback(ctx)
			return fmt.Errorf("platform/db: release savepoint: %w", err)
		}
		return nil
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	if err := fn(ContextWithTx(ctx, tx), tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}
