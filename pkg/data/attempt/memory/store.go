package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-payments/content-purchase/pkg/data/attempt"
	"github.com/code-payments/content-purchase/pkg/database/query"
	"github.com/code-payments/content-purchase/pkg/pointer"
)

type ById []*attempt.Record

func (a ById) Len() int           { return len(a) }
func (a ById) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ById) Less(i, j int) bool { return a[i].Id < a[j].Id }

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*attempt.Record
}

// New returns a new in memory attempt.Store
func New() attempt.Store {
	return &store{}
}

// Put implements attempt.Store.Put
func (s *store) Put(_ context.Context, data *attempt.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	if item := s.find(data); item != nil {
		return attempt.ErrAlreadyExists
	}

	if data.Id == 0 {
		data.Id = s.last
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}
	data.UpdatedAt = data.CreatedAt

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// Update implements attempt.Store.Update
func (s *store) Update(_ context.Context, data *attempt.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByAttemptId(data.AttemptId)
	if item == nil {
		return attempt.ErrNotFound
	}

	if item.State.IsTerminal() {
		return attempt.ErrInvalidUpdate
	}

	item.AccessType = data.AccessType
	item.Path = data.Path
	item.PriceQuarks = data.PriceQuarks
	item.ExtraQuarks = data.ExtraQuarks
	item.TotalQuarks = data.TotalQuarks
	item.State = data.State
	item.FailureKind = pointer.Copy(data.FailureKind)
	item.Signature = pointer.Copy(data.Signature)
	item.UpdatedAt = time.Now()

	item.CopyTo(data)

	return nil
}

// Get implements attempt.Store.Get
func (s *store) Get(_ context.Context, attemptId string) (*attempt.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByAttemptId(attemptId)
	if item == nil {
		return nil, attempt.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetAllByBuyer implements attempt.Store.GetAllByBuyer
func (s *store) GetAllByBuyer(_ context.Context, buyerId string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*attempt.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.findByBuyer(buyerId)
	items = s.filter(items, cursor, limit, direction)
	if len(items) == 0 {
		return nil, attempt.ErrNotFound
	}

	return cloneSlice(items), nil
}

// CountByContentAndState implements attempt.Store.CountByContentAndState
func (s *store) CountByContentAndState(_ context.Context, contentId string, state attempt.State) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.records {
		if item.ContentId == contentId && item.State == state {
			count++
		}
	}
	return count, nil
}

func (s *store) find(data *attempt.Record) *attempt.Record {
	for _, item := range s.records {
		if item.Id == data.Id {
			return item
		}

		if item.AttemptId == data.AttemptId {
			return item
		}
	}

	return nil
}

func (s *store) findByAttemptId(attemptId string) *attempt.Record {
	for _, item := range s.records {
		if item.AttemptId == attemptId {
			return item
		}
	}

	return nil
}

func (s *store) findByBuyer(buyerId string) []*attempt.Record {
	var res []*attempt.Record

	for _, item := range s.records {
		if item.BuyerId == buyerId {
			res = append(res, item)
		}
	}

	return res
}

func (s *store) filter(items []*attempt.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*attempt.Record {
	var start uint64

	start = 0
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*attempt.Record
	for _, item := range items {
		if item.Id > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.Id < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(ById(res)))
	}

	if limit > 0 && len(res) >= int(limit) {
		return res[:limit]
	}

	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = nil
}

func cloneSlice(items []*attempt.Record) []*attempt.Record {
	var res []*attempt.Record
	for _, item := range items {
		cloned := item.Clone()
		res = append(res, &cloned)
	}
	return res
}
