// Package dbx holds the database plumbing shared by the repositories: the
// DBTX handle, transaction scoping and PostgreSQL error classification.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is what a repository needs to run queries. Binding a repository to a
// *sql.Tx instead of the pool makes its statements part of that transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside one transaction. The refresh rotation depends on it:
// marking the old token used and inserting its successor either both land or
// neither does. An error or panic from fn rolls back, and the panic keeps unwinding.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	committed = true
	return tx.Commit()
}
