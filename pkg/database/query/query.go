package query

import (
	"errors"
	"strconv"
)

var ErrQueryNotSupported = errors.New("the requested query option is not supported")

// Page describes which slice of a result set to return
type Page struct {
	Limit     uint64
	Direction Ordering
	Cursor    Cursor
}

type Option func(*Page)

func WithLimit(limit uint64) Option {
	return func(p *Page) {
		p.Limit = limit
	}
}

func WithDirection(direction Ordering) Option {
	return func(p *Page) {
		p.Direction = direction
	}
}

// WithCursor resumes after the record the cursor points at
func WithCursor(cursor Cursor) Option {
	return func(p *Page) {
		p.Cursor = cursor
	}
}

// DefaultPaginationHandlerWithLimit applies opts over an ascending page of
// maxLimit records. Requests for a larger page are rejected.
func DefaultPaginationHandlerWithLimit(maxLimit uint64, opts ...Option) (*Page, error) {
	page := &Page{
		Limit:     maxLimit,
		Direction: Ascending,
	}
	for _, opt := range opts {
		opt(page)
	}

	if page.Limit == 0 || page.Limit > maxLimit {
		return nil, ErrQueryNotSupported
	}
	if len(page.Cursor) != 0 && len(page.Cursor) != 8 {
		return nil, ErrQueryNotSupported
	}
	return page, nil
}

// PaginateQuery appends id based paging to a query whose filter is fully
// parenthesized, as in "SELECT ... WHERE (...)", numbering new placeholders
// after args.
func PaginateQuery(query string, args []any, cursor Cursor, limit uint64, direction Ordering) (string, []any) {
	if len(cursor) > 0 {
		comparison := " > "
		if direction == Descending {
			comparison = " < "
		}
		args = append(args, cursor.ToUint64())
		query += " AND id" + comparison + "$" + strconv.Itoa(len(args))
	}

	query += " ORDER BY id " + direction.String()

	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	return query, args
}
