package data

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/content-purchase/pkg/data/attempt"
	pg "github.com/code-payments/content-purchase/pkg/database/postgres"
	"github.com/code-payments/content-purchase/pkg/database/query"

	attempt_memory_client "github.com/code-payments/content-purchase/pkg/data/attempt/memory"
	attempt_postgres_client "github.com/code-payments/content-purchase/pkg/data/attempt/postgres"
)

const (
	maxPurchaseAttemptReqSize = 100
)

type DatabaseData interface {
	// Purchase Attempts
	// --------------------------------------------------------------------------------
	CreatePurchaseAttempt(ctx context.Context, record *attempt.Record) error
	UpdatePurchaseAttempt(ctx context.Context, record *attempt.Record) error
	GetPurchaseAttempt(ctx context.Context, attemptId string) (*attempt.Record, error)
	GetAllPurchaseAttemptsByBuyer(ctx context.Context, buyerId string, opts ...query.Option) ([]*attempt.Record, error)
	CountPurchaseAttemptsByContentAndState(ctx context.Context, contentId string, state attempt.State) (uint64, error)

	// ExecuteInTx executes fn with a single DB transaction that is scoped to the call.
	// This enables more complex transactions that can span many calls across the provider.
	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	attempts attempt.Store

	db *sqlx.DB
}

func NewDatabaseProvider(ctx context.Context, dbConfig *pg.Config) (DatabaseData, error) {
	db, err := pg.New(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	return &DatabaseProvider{
		attempts: attempt_postgres_client.New(db),

		db: sqlx.NewDb(db, "pgx"),
	}, nil
}

func NewTestDatabaseProvider() DatabaseData {
	return &DatabaseProvider{
		attempts: attempt_memory_client.New(),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return fn(ctx)
	}

	return pg.ExecuteRetryable(func() error {
		return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
	})
}

// Purchase Attempts
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) CreatePurchaseAttempt(ctx context.Context, record *attempt.Record) error {
	return dp.attempts.Put(ctx, record)
}
func (dp *DatabaseProvider) UpdatePurchaseAttempt(ctx context.Context, record *attempt.Record) error {
	return dp.attempts.Update(ctx, record)
}
func (dp *DatabaseProvider) GetPurchaseAttempt(ctx context.Context, attemptId string) (*attempt.Record, error) {
	return dp.attempts.Get(ctx, attemptId)
}
func (dp *DatabaseProvider) GetAllPurchaseAttemptsByBuyer(ctx context.Context, buyerId string, opts ...query.Option) ([]*attempt.Record, error) {
	req, err := query.DefaultPaginationHandlerWithLimit(maxPurchaseAttemptReqSize, opts...)
	if err != nil {
		return nil, err
	}

	return dp.attempts.GetAllByBuyer(ctx, buyerId, req.Cursor, req.Limit, req.Direction)
}
func (dp *DatabaseProvider) CountPurchaseAttemptsByContentAndState(ctx context.Context, contentId string, state attempt.State) (uint64, error) {
	return dp.attempts.CountByContentAndState(ctx, contentId, state)
}
