// Package store implements the persistence ports over database/sql.
//
// Every store method resolves its executor through the context: inside a
// TxHandler scope writes go to the enclosing transaction, outside they go
// straight to the pool. Orchestrators never touch *sql.Tx directly.
package store

import (
	"context"
	"database/sql"
)

// executor is the subset of *sql.DB / *sql.Tx the stores need.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

// exec returns the transaction bound to ctx, or the pool when none is.
func exec(ctx context.Context, db *sql.DB) executor {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
