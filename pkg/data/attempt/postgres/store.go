package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/content-purchase/pkg/data/attempt"
	"github.com/code-payments/content-purchase/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed attempt.Store
func New(db *sql.DB) attempt.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements attempt.Store.Put
func (s *store) Put(ctx context.Context, record *attempt.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbPut(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// Update implements attempt.Store.Update
func (s *store) Update(ctx context.Context, record *attempt.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbUpdate(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// Get implements attempt.Store.Get
func (s *store) Get(ctx context.Context, attemptId string) (*attempt.Record, error) {
	model, err := dbGetByAttemptId(ctx, s.db, attemptId)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAllByBuyer implements attempt.Store.GetAllByBuyer
func (s *store) GetAllByBuyer(ctx context.Context, buyerId string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*attempt.Record, error) {
	models, err := dbGetAllByBuyer(ctx, s.db, buyerId, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	var res []*attempt.Record
	for _, model := range models {
		res = append(res, fromModel(model))
	}
	return res, nil
}

// CountByContentAndState implements attempt.Store.CountByContentAndState
func (s *store) CountByContentAndState(ctx context.Context, contentId string, state attempt.State) (uint64, error) {
	return dbCountByContentAndState(ctx, s.db, contentId, state)
}
