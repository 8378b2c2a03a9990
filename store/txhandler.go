package store

import (
	"context"
	"database/sql"
	"fmt"
)

type savepointKey struct{}

// TxHandler runs functions inside a database transaction. Nested calls do
// not open a second transaction; they create a savepoint inside the current
// one, so an inner failure rolls back only the inner scope.
type TxHandler struct {
	db *sql.DB
}

func NewTxHandler(db *sql.DB) *TxHandler {
	return &TxHandler{db: db}
}

// Do executes fn atomically. The transaction is committed when fn returns
// nil and rolled back otherwise.
func (h *TxHandler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return h.doSavepoint(ctx, tx, fn)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	ctx = context.WithValue(ctx, txContextKey{}, tx)

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (h *TxHandler) doSavepoint(ctx context.Context, tx *sql.Tx, fn func(ctx context.Context) error) error {
	depth, _ := ctx.Value(savepointKey{}).(int)
	name := fmt.Sprintf("sp_%d", depth+1)

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}

	ctx = context.WithValue(ctx, savepointKey{}, depth+1)

	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to %s after %v: %w", name, err, rbErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}
