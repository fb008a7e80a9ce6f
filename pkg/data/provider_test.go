package data

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/content-purchase/pkg/data/attempt"
	"github.com/code-payments/content-purchase/pkg/database/query"
	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/memory"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

func TestTestDataProvider_PurchaseAttempts(t *testing.T) {
	ctx := context.Background()
	p := NewTestDataProvider(memory.NewClient(), newKey(t))

	for i := 0; i < 3; i++ {
		require.NoError(t, p.CreatePurchaseAttempt(ctx, &attempt.Record{
			AttemptId:   fmt.Sprintf("attempt_%d", i),
			ContentId:   "track_1",
			ContentType: "track",
			BuyerId:     "buyer_1",
			State:       attempt.StateValidating,
		}))
	}

	records, err := p.GetAllPurchaseAttemptsByBuyer(ctx, "buyer_1", query.WithLimit(2), query.WithDirection(query.Descending))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "attempt_2", records[0].AttemptId)
	assert.Equal(t, "attempt_1", records[1].AttemptId)

	_, err = p.GetAllPurchaseAttemptsByBuyer(ctx, "buyer_1", query.WithLimit(maxPurchaseAttemptReqSize+1))
	assert.Equal(t, query.ErrQueryNotSupported, err)

	count, err := p.CountPurchaseAttemptsByContentAndState(ctx, "track_1", attempt.StateValidating)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	var called bool
	require.NoError(t, p.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestTestDataProvider_Blockchain(t *testing.T) {
	ctx := context.Background()

	sc := memory.NewClient()
	mint := newKey(t)
	p := NewTestDataProvider(sc, mint)

	expected, err := sc.GetLatestBlockhash()
	require.NoError(t, err)
	actual, err := p.GetBlockchainLatestBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)

	address := newKey(t)
	_, err = p.GetBlockchainAccountInfo(ctx, address, solana.CommitmentFinalized)
	assert.Equal(t, solana.ErrNoAccountInfo, err)

	_, err = p.GetBlockchainTokenAccountInfo(ctx, address, solana.CommitmentFinalized)
	assert.Equal(t, token.ErrAccountNotFound, err)

	owner := newKey(t)
	sc.SetTokenAccount(address, mint, owner, 42)

	account, err := p.GetBlockchainTokenAccountInfo(ctx, address, solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, 42, account.Amount)
	assert.EqualValues(t, owner, account.Owner)

	sc.SetTokenAccount(address, newKey(t), owner, 42)
	_, err = p.GetBlockchainTokenAccountInfo(ctx, address, solana.CommitmentFinalized)
	assert.Equal(t, token.ErrInvalidTokenAccount, err)

	info, err := p.GetBlockchainAccountInfo(ctx, address, solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, token.ProgramKey, info.Owner)

	assert.NotNil(t, p.GetBlockchainDataProvider())
	assert.NotNil(t, p.GetDatabaseDataProvider())
}

func newKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub
}
