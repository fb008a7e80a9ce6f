package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/content-purchase/pkg/data/attempt"
	pgutil "github.com/code-payments/content-purchase/pkg/database/postgres"
	q "github.com/code-payments/content-purchase/pkg/database/query"
	"github.com/code-payments/content-purchase/pkg/pointer"
)

const (
	tableName = "content__core_purchaseattempt"

	allColumns = `id, attempt_id, content_id, content_type, buyer_id, access_type, path, price_quarks, extra_quarks, total_quarks, state, failure_kind, signature, created_at, updated_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	AttemptId   string `db:"attempt_id"`
	ContentId   string `db:"content_id"`
	ContentType string `db:"content_type"`
	BuyerId     string `db:"buyer_id"`
	AccessType  string `db:"access_type"`
	Path        uint8  `db:"path"`

	PriceQuarks uint64 `db:"price_quarks"`
	ExtraQuarks uint64 `db:"extra_quarks"`
	TotalQuarks uint64 `db:"total_quarks"`

	State       uint8          `db:"state"`
	FailureKind sql.NullString `db:"failure_kind"`
	Signature   sql.NullString `db:"signature"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toModel(obj *attempt.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		AttemptId:   obj.AttemptId,
		ContentId:   obj.ContentId,
		ContentType: obj.ContentType,
		BuyerId:     obj.BuyerId,
		AccessType:  obj.AccessType,
		Path:        uint8(obj.Path),

		PriceQuarks: obj.PriceQuarks,
		ExtraQuarks: obj.ExtraQuarks,
		TotalQuarks: obj.TotalQuarks,

		State: uint8(obj.State),
		FailureKind: sql.NullString{
			Valid:  obj.FailureKind != nil,
			String: *pointer.OrDefault(obj.FailureKind, ""),
		},
		Signature: sql.NullString{
			Valid:  obj.Signature != nil,
			String: *pointer.OrDefault(obj.Signature, ""),
		},

		CreatedAt: obj.CreatedAt,
		UpdatedAt: obj.UpdatedAt,
	}, nil
}

func fromModel(obj *model) *attempt.Record {
	return &attempt.Record{
		Id: uint64(obj.Id.Int64),

		AttemptId:   obj.AttemptId,
		ContentId:   obj.ContentId,
		ContentType: obj.ContentType,
		BuyerId:     obj.BuyerId,
		AccessType:  obj.AccessType,
		Path:        attempt.Path(obj.Path),

		PriceQuarks: obj.PriceQuarks,
		ExtraQuarks: obj.ExtraQuarks,
		TotalQuarks: obj.TotalQuarks,

		State:       attempt.State(obj.State),
		FailureKind: pointer.IfValid(obj.FailureKind.Valid, obj.FailureKind.String),
		Signature:   pointer.IfValid(obj.Signature.Valid, obj.Signature.String),

		CreatedAt: obj.CreatedAt,
		UpdatedAt: obj.UpdatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(attempt_id, content_id, content_type, buyer_id, access_type, path, price_quarks, extra_quarks, total_quarks, state, failure_kind, signature, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.AttemptId,
			m.ContentId,
			m.ContentType,
			m.BuyerId,
			m.AccessType,
			m.Path,
			m.PriceQuarks,
			m.ExtraQuarks,
			m.TotalQuarks,
			m.State,
			m.FailureKind,
			m.Signature,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, attempt.ErrAlreadyExists)
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET access_type = $2, path = $3, price_quarks = $4, extra_quarks = $5, total_quarks = $6, state = $7, failure_kind = $8, signature = $9, updated_at = $10
			WHERE attempt_id = $1 AND state NOT IN ($11, $12)
			RETURNING ` + allColumns

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.AttemptId,
			m.AccessType,
			m.Path,
			m.PriceQuarks,
			m.ExtraQuarks,
			m.TotalQuarks,
			m.State,
			m.FailureKind,
			m.Signature,
			time.Now(),
			attempt.StateConfirmed,
			attempt.StateFailed,
		).StructScan(m)
		if !pgutil.IsNoRows(err) {
			return err
		}

		var exists bool
		existsQuery := `SELECT EXISTS(SELECT 1 FROM ` + tableName + ` WHERE attempt_id = $1)`
		if err := tx.GetContext(ctx, &exists, existsQuery, m.AttemptId); err != nil {
			return err
		}
		if exists {
			return attempt.ErrInvalidUpdate
		}
		return attempt.ErrNotFound
	})
}

func dbGetByAttemptId(ctx context.Context, db *sqlx.DB, attemptId string) (*model, error) {
	var res model
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE attempt_id = $1
	`

	err := db.GetContext(ctx, &res, query, attemptId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, attempt.ErrNotFound)
	}
	return &res, nil
}

func dbGetAllByBuyer(ctx context.Context, db *sqlx.DB, buyerId string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	opts := []any{buyerId}
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE (buyer_id = $1)
	`
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, attempt.ErrNotFound)
	} else if len(res) == 0 {
		return nil, attempt.ErrNotFound
	}
	return res, nil
}

func dbCountByContentAndState(ctx context.Context, db *sqlx.DB, contentId string, state attempt.State) (uint64, error) {
	var res uint64
	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE content_id = $1 AND state = $2
	`

	err := db.GetContext(ctx, &res, query, contentId, state)
	if err != nil {
		return 0, err
	}
	return res, nil
}
