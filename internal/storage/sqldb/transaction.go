// Package sqldb holds the transaction plumbing shared by the SQL-backed
// checkpoint stores.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// TransactionManager runs work in a transaction carried by the context.
type TransactionManager struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTransactionManager returns a manager that begins transactions with
// opts; nil means the driver default.
func NewTransactionManager(db *sqlx.DB, opts *sql.TxOptions) *TransactionManager {
	return &TransactionManager{db: db, opts: opts}
}

// WithTransaction runs fn inside a transaction. When ctx already carries one
// fn joins it and the outer call decides the outcome. Otherwise the
// transaction commits when fn returns nil and rolls back when it does not.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTxx(ctx, tm.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func txFrom(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// Executor returns the transaction in ctx, or db when there is none.
func Executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}
