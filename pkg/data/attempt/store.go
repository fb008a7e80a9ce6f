package attempt

import (
	"context"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/database/query"
)

var (
	ErrNotFound      = errors.New("purchase attempt record not found")
	ErrAlreadyExists = errors.New("purchase attempt record already exists")
	ErrInvalidUpdate = errors.New("purchase attempt record cannot leave a terminal state")
)

type Store interface {
	// Put creates a purchase attempt record
	//
	// Returns ErrAlreadyExists if a record already exists.
	Put(ctx context.Context, record *Record) error

	// Update updates the mutable fields of a purchase attempt record
	//
	// Returns ErrNotFound if no record exists, and ErrInvalidUpdate if the
	// stored record is already in a terminal state.
	Update(ctx context.Context, record *Record) error

	// Get finds the purchase attempt record for a given attempt ID
	//
	// Returns ErrNotFound if no record is found.
	Get(ctx context.Context, attemptId string) (*Record, error)

	// GetAllByBuyer gets a page of purchase attempts made by a buyer
	//
	// Returns ErrNotFound if no records are found.
	GetAllByBuyer(ctx context.Context, buyerId string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// CountByContentAndState counts purchase attempts for a piece of content
	// in a provided state
	CountByContentAndState(ctx context.Context, contentId string, state State) (uint64, error)
}
