package queuedb

import (
	"context"

	"github.com/uptrace/bun"
)

// RunInTx runs fn in a transaction, rolling back when fn fails. Errors are
// returned untouched for the caller to log.
func RunInTx(ctx context.Context, db *bun.DB, fn func(tx bun.Tx) error) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(tx)
	})
}

func RunInTxWithReturnType[T any](ctx context.Context, db *bun.DB, fn func(tx bun.Tx) (T, error)) (T, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return *new(T), err
	}

	var committed bool
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	result, err := fn(tx)
	if err != nil {
		return *new(T), err
	}

	if err := tx.Commit(); err != nil {
		return *new(T), err
	}

	committed = true

	return result, nil
}
