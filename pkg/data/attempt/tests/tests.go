package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/content-purchase/pkg/data/attempt"
	"github.com/code-payments/content-purchase/pkg/database/query"
	"github.com/code-payments/content-purchase/pkg/pointer"
)

func RunTests(t *testing.T, s attempt.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s attempt.Store){
		testHappyPath,
		testTerminalStates,
		testGetAllByBuyer,
		testCounting,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s attempt.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		record := &attempt.Record{
			AttemptId:   "attempt_id",
			ContentId:   "track_1",
			ContentType: "track",
			BuyerId:     "buyer_1",
			State:       attempt.StateValidating,
		}
		cloned := record.Clone()

		_, err := s.Get(ctx, record.AttemptId)
		assert.Equal(t, attempt.ErrNotFound, err)
		assert.Equal(t, attempt.ErrNotFound, s.Update(ctx, record))

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, attempt.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.Get(ctx, record.AttemptId)
		require.NoError(t, err)
		assert.True(t, actual.Id > 0)
		assert.True(t, actual.CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)

		record.AccessType = "stream"
		record.Path = attempt.PathRelay
		record.PriceQuarks = 1_000_000
		record.ExtraQuarks = 250_000
		record.TotalQuarks = 1_250_000
		record.State = attempt.StateSubmitted
		record.Signature = pointer.To("signature")
		cloned = record.Clone()
		require.NoError(t, s.Update(ctx, record))

		actual, err = s.Get(ctx, record.AttemptId)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
		assert.False(t, actual.UpdatedAt.Before(actual.CreatedAt))
	})
}

func testTerminalStates(t *testing.T, s attempt.Store) {
	t.Run("testTerminalStates", func(t *testing.T) {
		ctx := context.Background()

		record := &attempt.Record{
			AttemptId:   "attempt_id",
			ContentId:   "track_1",
			ContentType: "track",
			BuyerId:     "buyer_1",
			State:       attempt.StateValidating,
		}
		require.NoError(t, s.Put(ctx, record))

		record.State = attempt.StateFailed
		assert.Error(t, s.Update(ctx, record))

		record.FailureKind = pointer.To("already_owned")
		require.NoError(t, s.Update(ctx, record))

		record.State = attempt.StateConfirmed
		record.FailureKind = nil
		record.Signature = pointer.To("signature")
		assert.Equal(t, attempt.ErrInvalidUpdate, s.Update(ctx, record))

		actual, err := s.Get(ctx, record.AttemptId)
		require.NoError(t, err)
		assert.Equal(t, attempt.StateFailed, actual.State)
		require.NotNil(t, actual.FailureKind)
		assert.Equal(t, "already_owned", *actual.FailureKind)
		assert.Nil(t, actual.Signature)
	})
}

func testGetAllByBuyer(t *testing.T, s attempt.Store) {
	t.Run("testGetAllByBuyer", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByBuyer(ctx, "buyer_1", query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, attempt.ErrNotFound, err)

		var expected []*attempt.Record
		for i := 0; i < 5; i++ {
			record := &attempt.Record{
				AttemptId:   fmt.Sprintf("attempt_%d", i),
				ContentId:   fmt.Sprintf("track_%d", i),
				ContentType: "track",
				BuyerId:     "buyer_1",
				State:       attempt.StateValidating,
			}
			require.NoError(t, s.Put(ctx, record))
			expected = append(expected, record)

			other := &attempt.Record{
				AttemptId:   fmt.Sprintf("other_attempt_%d", i),
				ContentId:   fmt.Sprintf("track_%d", i),
				ContentType: "track",
				BuyerId:     "buyer_2",
				State:       attempt.StateValidating,
			}
			require.NoError(t, s.Put(ctx, other))
		}

		actual, err := s.GetAllByBuyer(ctx, "buyer_1", query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i, record := range actual {
			assert.Equal(t, expected[i].AttemptId, record.AttemptId)
		}

		actual, err = s.GetAllByBuyer(ctx, "buyer_1", query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i, record := range actual {
			assert.Equal(t, expected[4-i].AttemptId, record.AttemptId)
		}

		actual, err = s.GetAllByBuyer(ctx, "buyer_1", query.EmptyCursor, 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, expected[0].AttemptId, actual[0].AttemptId)
		assert.Equal(t, expected[1].AttemptId, actual[1].AttemptId)

		actual, err = s.GetAllByBuyer(ctx, "buyer_1", query.ToCursor(actual[1].Id), 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, expected[2].AttemptId, actual[0].AttemptId)
		assert.Equal(t, expected[3].AttemptId, actual[1].AttemptId)

		actual, err = s.GetAllByBuyer(ctx, "buyer_1", query.ToCursor(expected[4].Id), 10, query.Ascending)
		assert.Equal(t, attempt.ErrNotFound, err)
		assert.Empty(t, actual)
	})
}

func testCounting(t *testing.T, s attempt.Store) {
	t.Run("testCounting", func(t *testing.T) {
		ctx := context.Background()

		records := []*attempt.Record{
			{AttemptId: "id1", ContentId: "track_1", ContentType: "track", BuyerId: "buyer_1", State: attempt.StateValidating},
			{AttemptId: "id2", ContentId: "track_1", ContentType: "track", BuyerId: "buyer_2", State: attempt.StateSubmitted, Signature: pointer.To("sig2")},
			{AttemptId: "id3", ContentId: "track_1", ContentType: "track", BuyerId: "buyer_3", State: attempt.StateConfirmed, Signature: pointer.To("sig3")},
			{AttemptId: "id4", ContentId: "track_1", ContentType: "track", BuyerId: "buyer_4", State: attempt.StateConfirmed, Signature: pointer.To("sig4")},
			{AttemptId: "id5", ContentId: "track_2", ContentType: "track", BuyerId: "buyer_1", State: attempt.StateConfirmed, Signature: pointer.To("sig5")},
			{AttemptId: "id6", ContentId: "track_2", ContentType: "track", BuyerId: "buyer_1", State: attempt.StateFailed, FailureKind: pointer.To("price_changed")},
		}
		for _, record := range records {
			require.NoError(t, s.Put(ctx, record))
		}

		count, err := s.CountByContentAndState(ctx, "track_1", attempt.StateConfirmed)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		count, err = s.CountByContentAndState(ctx, "track_1", attempt.StateValidating)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		count, err = s.CountByContentAndState(ctx, "track_2", attempt.StateConfirmed)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		count, err = s.CountByContentAndState(ctx, "track_2", attempt.StateSubmitted)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		count, err = s.CountByContentAndState(ctx, "track_3", attempt.StateConfirmed)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *attempt.Record) {
	assert.Equal(t, obj1.AttemptId, obj2.AttemptId)
	assert.Equal(t, obj1.ContentId, obj2.ContentId)
	assert.Equal(t, obj1.ContentType, obj2.ContentType)
	assert.Equal(t, obj1.BuyerId, obj2.BuyerId)
	assert.Equal(t, obj1.AccessType, obj2.AccessType)
	assert.Equal(t, obj1.Path, obj2.Path)
	assert.Equal(t, obj1.PriceQuarks, obj2.PriceQuarks)
	assert.Equal(t, obj1.ExtraQuarks, obj2.ExtraQuarks)
	assert.Equal(t, obj1.TotalQuarks, obj2.TotalQuarks)
	assert.Equal(t, obj1.State, obj2.State)
	assert.EqualValues(t, obj1.FailureKind, obj2.FailureKind)
	assert.EqualValues(t, obj1.Signature, obj2.Signature)
}
