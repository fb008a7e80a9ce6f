package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/content-purchase/pkg/retry"
)

var (
	ErrAlreadyInTx = errors.New("already executing in existing db tx")
	ErrNotInTx     = errors.New("not executing in existing db tx")
)

const maxSerializationRetries = 5

// ambientTx is the transaction opened by ExecuteTxWithinCtx, carried on the
// context so store calls made inside fn join it
type ambientTx struct {
	tx        *sqlx.Tx
	isolation sql.IsolationLevel
}

type ambientTxKey struct{}

// ExecuteRetryable runs fn, retrying a bounded number of times while it fails
// with a serialization failure.
func ExecuteRetryable(fn func() error) error {
	_, err := retry.Retry(
		fn,
		retry.Limit(maxSerializationRetries),
		retry.RetriableWhen(IsSerializationFailure),
	)
	return err
}

// ExecuteTxWithinCtx opens a transaction, exposes it to ExecuteInTx calls made
// with the context passed to fn, and commits when fn succeeds.
func ExecuteTxWithinCtx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(context.Context) error) error {
	if ctx.Value(ambientTxKey{}) != nil {
		return ErrAlreadyInTx
	}

	isolation = withPostgresDefault(isolation)
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, ambientTxKey{}, &ambientTx{tx: tx, isolation: isolation})
	return finish(tx, fn(ctx))
}

// ExecuteInTx runs fn inside the transaction carried by ctx when there is one,
// and otherwise inside a new transaction it commits or rolls back itself.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	isolation = withPostgresDefault(isolation)

	ambient, err := ambientFromCtx(ctx, isolation)
	switch {
	case err == nil:
		return fn(ambient)
	case err != ErrNotInTx:
		return err
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}
	return finish(tx, fn(tx))
}

// finish commits tx when err is nil and rolls it back otherwise. Rollback is
// required for the pool to release the connection.
func finish(tx *sqlx.Tx, err error) error {
	if err == nil {
		return tx.Commit()
	}
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		return fmt.Errorf("failed to rollback transaction: %w", rollbackErr)
	}
	return err
}

func withPostgresDefault(isolation sql.IsolationLevel) sql.IsolationLevel {
	if isolation == sql.LevelDefault {
		return sql.LevelReadCommitted
	}
	return isolation
}

func ambientFromCtx(ctx context.Context, required sql.IsolationLevel) (*sqlx.Tx, error) {
	raw := ctx.Value(ambientTxKey{})
	if raw == nil {
		return nil, ErrNotInTx
	}

	ambient, ok := raw.(*ambientTx)
	if !ok {
		return nil, errors.New("invalid type for ambient tx")
	}
	if ambient.isolation < required {
		return nil, fmt.Errorf("ambient tx isolation %s is weaker than required %s", ambient.isolation, required)
	}
	return ambient.tx, nil
}
