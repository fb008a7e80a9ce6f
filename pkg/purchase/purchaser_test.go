package purchase

import (
	"context"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/content-purchase/pkg/data"
	"github.com/code-payments/content-purchase/pkg/data/attempt"
	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/memory"
	"github.com/code-payments/content-purchase/pkg/testutil"
	"github.com/code-payments/content-purchase/pkg/usdc"
)

type testEnv struct {
	ctx       context.Context
	client    *memory.Client
	db        data.DatabaseData
	directory *testDirectory
	resolver  *testSplitResolver
	relay     *testRelay
	funding   *testFunding
	observer  *recordingObserver
	purchaser *Purchaser
}

func setup(t *testing.T, overrides *testOverrides, infos ...*ContentAccessInfo) *testEnv {
	reset := testutil.DisableLogging()
	t.Cleanup(reset)

	client := memory.NewClient()

	env := &testEnv{
		ctx:       context.Background(),
		client:    client,
		db:        data.NewTestDatabaseProvider(),
		directory: newTestDirectory(infos...),
		resolver:  &testSplitResolver{},
		relay:     newTestRelay(t, client),
		funding:   &testFunding{},
		observer:  &recordingObserver{},
	}

	if overrides == nil {
		overrides = &testOverrides{}
	}

	purchaser, err := NewPurchaser(
		env.db,
		env.directory,
		env.resolver,
		env.relay,
		env.funding,
		env.client,
		env.observer,
		withManualTestOverrides(overrides),
	)
	require.NoError(t, err)
	env.purchaser = purchaser

	return env
}

func (e *testEnv) assertRecord(t *testing.T, attemptId string, state attempt.State, kind Kind) *attempt.Record {
	record, err := e.db.GetPurchaseAttempt(e.ctx, attemptId)
	require.NoError(t, err)

	assert.Equal(t, attemptId, record.AttemptId)
	assert.Equal(t, testContentId, record.ContentId)
	assert.Equal(t, string(ContentTypeTrack), record.ContentType)
	assert.Equal(t, testBuyerId, record.BuyerId)
	assert.Equal(t, state, record.State)
	if kind == KindNone {
		assert.Nil(t, record.FailureKind)
	} else {
		require.NotNil(t, record.FailureKind)
		assert.Equal(t, string(kind), *record.FailureKind)
	}
	return record
}

func relayIntent(buyer Authenticator, confirmed string) *Intent {
	return &Intent{
		BuyerId:        testBuyerId,
		ContentId:      testContentId,
		ConfirmedPrice: decimal.RequireFromString(confirmed),
		Buyer:          buyer,
	}
}

func walletIntent(wallet *testWallet, confirmed string) *Intent {
	return &Intent{
		BuyerId:        testBuyerId,
		ContentId:      testContentId,
		ConfirmedPrice: decimal.RequireFromString(confirmed),
		Wallet: &ExternalWallet{
			Address: wallet.address(),
			Adapter: wallet,
		},
	}
}

var successfulStates = []State{
	StateValidating,
	StateBuildingTransaction,
	StateAwaitingSignature,
	StateSubmitted,
	StateConfirmed,
}

func TestPurchase_WalletPath(t *testing.T) {
	owner := ethSplit(t, "owner", 4_500_000)
	label := payoutSplit(t, "label", 500_000)
	env := setup(t, nil, usdcGatedTrack(500, owner, label))

	wallet := newTestWallet(t)

	result, err := env.purchaser.Purchase(env.ctx, walletIntent(wallet, "5.00"))
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, PathWallet, result.Path)
	assert.Equal(t, KindNone, result.Kind)
	assert.NoError(t, result.Err)

	submitted := env.client.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, submitted[0].Signatures[0], result.Signature)
	assert.Equal(t, 1, wallet.sentCount())
	assert.Zero(t, env.relay.sentCount())

	d, err := DescribeTransaction(submitted[0])
	require.NoError(t, err)

	assert.EqualValues(t, wallet.address(), d.FeePayer)
	assert.Equal(t, []InstructionKind{
		InstructionKindTransfer,
		InstructionKindRoute,
		InstructionKindPurchaseMemo,
		InstructionKindLocationMemo,
	}, d.Order)

	require.NotNil(t, d.WalletTransfer)
	assert.EqualValues(t, wallet.address(), d.WalletTransfer.Owner)
	assert.EqualValues(t, 5_000_000, d.TransferAmount())
	assert.EqualValues(t, 5_000_000, d.Route.Total)
	assert.Equal(t, []uint64{4_500_000, 500_000}, d.Route.Amounts)
	assert.EqualValues(t, label.PayoutWallet, d.RouteAccounts.Recipients[1])
	assert.Nil(t, d.Signer)

	require.NotNil(t, d.PurchaseMemo)
	assert.Equal(t, "track", d.PurchaseMemo.ContentType)
	assert.Equal(t, testContentId, d.PurchaseMemo.ContentId)
	assert.EqualValues(t, testBlock, d.PurchaseMemo.BlockNumber)
	assert.Equal(t, testBuyerId, d.PurchaseMemo.BuyerId)
	assert.Equal(t, "stream", d.PurchaseMemo.AccessType)

	require.NotNil(t, d.LocationMemo)
	assert.Contains(t, *d.LocationMemo, "geo:")

	assert.Equal(t, successfulStates, env.observer.states())
	assert.Equal(t, result.Signature, env.observer.last().Signature)

	record := env.assertRecord(t, result.AttemptId, attempt.StateConfirmed, KindNone)
	assert.Equal(t, attempt.PathWallet, record.Path)
	assert.Equal(t, "stream", record.AccessType)
	assert.EqualValues(t, 5_000_000, record.PriceQuarks)
	assert.EqualValues(t, 5_000_000, record.TotalQuarks)
	require.NotNil(t, record.Signature)
	assert.Equal(t, result.Signature.String(), *record.Signature)
}

func TestPurchase_RelayPath(t *testing.T) {
	owner := payoutSplit(t, "owner", 3_000_000)
	label := ethSplit(t, "label", 2_000_000)
	env := setup(t, nil, usdcGatedTrack(500, owner, label))

	buyer := newEthBuyer(t)
	intent := relayIntent(buyer, "5.00")
	intent.ExtraAmount = decimal.RequireFromString("1.00")

	result, err := env.purchaser.Purchase(env.ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, PathRelay, result.Path)

	require.Equal(t, 1, env.relay.sentCount())
	submitted := env.client.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, submitted[0].Signatures[0], result.Signature)

	d, err := DescribeTransaction(submitted[0])
	require.NoError(t, err)

	assert.EqualValues(t, env.relay.feePayerKey(), d.FeePayer)
	assert.Equal(t, []InstructionKind{
		InstructionKindRecovery,
		InstructionKindTransfer,
		InstructionKindRoute,
		InstructionKindPurchaseMemo,
		InstructionKindLocationMemo,
	}, d.Order)

	// The route total matches the authorized transfer amount
	assert.EqualValues(t, 6_000_000, d.Route.Total)
	assert.EqualValues(t, 6_000_000, d.Authorization.Amount)
	assert.EqualValues(t, 6_000_000, d.TransferAmount())
	assert.Equal(t, []uint64{4_000_000, 2_000_000}, d.Route.Amounts)

	destination, err := env.purchaser.factory.ProgramTokenAccount()
	require.NoError(t, err)

	require.NotNil(t, d.Signer)
	assert.Equal(t, buyer.Address(), *d.Signer)
	assert.EqualValues(t, destination, d.Authorization.Destination)

	require.NotNil(t, d.UserBankTransfer)
	assert.Equal(t, buyer.Address(), d.UserBankTransfer.EthAddress)
	assert.EqualValues(t, destination, d.UserBankTransfer.Destination)
	assert.EqualValues(t, env.relay.feePayerKey(), d.UserBankTransfer.Payer)

	require.Len(t, env.resolver.calls, 1)
	assert.Equal(t, *label.EthWallet, env.resolver.calls[0])

	assert.Equal(t, successfulStates, env.observer.states())

	record := env.assertRecord(t, result.AttemptId, attempt.StateConfirmed, KindNone)
	assert.Equal(t, attempt.PathRelay, record.Path)
	assert.EqualValues(t, 5_000_000, record.PriceQuarks)
	assert.EqualValues(t, 1_000_000, record.ExtraQuarks)
	assert.EqualValues(t, 6_000_000, record.TotalQuarks)
}

func TestPurchase_PriceIncreased(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	result, err := env.purchaser.Purchase(env.ctx, relayIntent(newEthBuyer(t), "4.99"))
	assert.True(t, errors.Is(err, ErrPriceChanged))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, KindPriceChanged, result.Kind)
	assert.Equal(t, err, result.Err)

	assert.Equal(t, []State{StateValidating, StateFailed}, env.observer.states())
	assert.Zero(t, env.relay.feePayerCalls)
	assert.Zero(t, env.relay.sentCount())

	env.assertRecord(t, result.AttemptId, attempt.StateFailed, KindPriceChanged)
}

func TestPurchase_AlreadyOwned(t *testing.T) {
	info := usdcGatedTrack(500, ethSplit(t, "owner", 5_000_000))
	info.Access.Stream = true
	env := setup(t, nil, info)

	result, err := env.purchaser.Purchase(env.ctx, relayIntent(newEthBuyer(t), "5.00"))
	assert.True(t, errors.Is(err, ErrAlreadyOwned))
	assert.Equal(t, KindAlreadyOwned, result.Kind)

	// Nothing was built
	assert.Equal(t, []State{StateValidating, StateFailed}, env.observer.states())
	assert.Empty(t, env.resolver.calls)
	assert.Zero(t, env.relay.feePayerCalls)
	assert.Empty(t, env.client.Submitted())
}

func TestPurchase_WalletNotConnected(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	wallet := newTestWallet(t)
	wallet.connected = false

	result, err := env.purchaser.Purchase(env.ctx, walletIntent(wallet, "5.00"))
	assert.True(t, errors.Is(err, ErrWalletNotConnected))
	assert.Equal(t, KindWalletNotConnected, result.Kind)
	assert.Equal(t, PathWallet, result.Path)

	assert.Equal(t, []State{
		StateValidating,
		StateBuildingTransaction,
		StateAwaitingSignature,
		StateFailed,
	}, env.observer.states())
	assert.Equal(t, StateAwaitingSignature, env.observer.last().From)

	assert.Zero(t, wallet.sentCount())
	assert.Empty(t, env.client.Submitted())

	env.assertRecord(t, result.AttemptId, attempt.StateFailed, KindWalletNotConnected)
}

func TestPurchase_WalletMismatch(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	wallet := newTestWallet(t)
	intent := walletIntent(wallet, "5.00")
	intent.Wallet.Address = newPublicKey(t)

	_, err := env.purchaser.Purchase(env.ctx, intent)
	assert.True(t, errors.Is(err, ErrWalletNotConnected))
	assert.Zero(t, wallet.sentCount())

	// No address and no adapter fails before anything is assembled
	intent.Wallet = &ExternalWallet{}
	env.observer.transitions = nil

	_, err = env.purchaser.Purchase(env.ctx, intent)
	assert.True(t, errors.Is(err, ErrWalletNotConnected))
	assert.Equal(t, []State{StateValidating, StateBuildingTransaction, StateFailed}, env.observer.states())
}

func TestPurchase_WalletAddressFromAdapter(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	wallet := newTestWallet(t)
	intent := walletIntent(wallet, "5.00")
	intent.Wallet.Address = nil

	result, err := env.purchaser.Purchase(env.ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, 1, wallet.sentCount())
}

func TestPurchase_RejectedBeforeBuilding(t *testing.T) {
	for _, tc := range []struct {
		name     string
		setup    func(env *testEnv, intent *Intent)
		expected Kind
	}{
		{
			name:     "content not found",
			setup:    func(_ *testEnv, intent *Intent) { intent.ContentId = "missing" },
			expected: KindContentNotFound,
		},
		{
			name:     "self purchase",
			setup:    func(_ *testEnv, intent *Intent) { intent.BuyerId = testOwnerId },
			expected: KindSelfPurchase,
		},
		{
			name:     "directory unavailable",
			setup:    func(env *testEnv, _ *Intent) { env.directory.err = errors.New("connection refused") },
			expected: KindNetworkFailure,
		},
		{
			name:     "negative extra",
			setup:    func(_ *testEnv, intent *Intent) { intent.ExtraAmount = decimal.RequireFromString("-1") },
			expected: KindInvalidInstructionInput,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

			intent := relayIntent(newEthBuyer(t), "5.00")
			tc.setup(env, intent)

			result, err := env.purchaser.Purchase(env.ctx, intent)
			require.Error(t, err)
			assert.Equal(t, tc.expected, KindOf(err))
			assert.Equal(t, tc.expected, result.Kind)
			assert.Equal(t, []State{StateValidating, StateFailed}, env.observer.states())
			assert.Zero(t, env.relay.sentCount())
		})
	}
}

func TestPurchase_InvalidIntent(t *testing.T) {
	env := setup(t, nil)

	result, err := env.purchaser.Purchase(env.ctx, nil)
	assert.True(t, errors.Is(err, ErrInvalidInstructionInput))
	assert.Equal(t, StateFailed, result.State)

	result, err = env.purchaser.Purchase(env.ctx, &Intent{BuyerId: testBuyerId})
	assert.True(t, errors.Is(err, ErrInvalidInstructionInput))

	// Unidentifiable attempts are not recorded
	_, err = env.db.GetPurchaseAttempt(env.ctx, result.AttemptId)
	assert.Equal(t, attempt.ErrNotFound, err)
}

func TestPurchase_SplitMismatch(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 4_000_000)))

	result, err := env.purchaser.Purchase(env.ctx, relayIntent(newEthBuyer(t), "5.00"))
	assert.True(t, errors.Is(err, ErrSplitMismatch))
	assert.Equal(t, []State{StateValidating, StateBuildingTransaction, StateFailed}, env.observer.states())

	env.assertRecord(t, result.AttemptId, attempt.StateFailed, KindSplitMismatch)
}

func TestPurchase_Unauthenticated(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	_, err := env.purchaser.Purchase(env.ctx, relayIntent(nil, "5.00"))
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	buyer := newEthBuyer(t)
	buyer.signErr = errors.New("user rejected the request")

	_, err = env.purchaser.Purchase(env.ctx, relayIntent(buyer, "5.00"))
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.False(t, IsRetryable(err))
	assert.Zero(t, env.relay.sentCount())
}

func TestPurchase_RelayFailures(t *testing.T) {
	for _, tc := range []struct {
		name     string
		setup    func(env *testEnv)
		expected Kind
		last     State
	}{
		{
			name:     "fee payer unavailable",
			setup:    func(env *testEnv) { env.relay.feePayerErr = errors.New("503") },
			expected: KindRelayFailure,
			last:     StateBuildingTransaction,
		},
		{
			name:     "location unavailable",
			setup:    func(env *testEnv) { env.relay.locationErr = errors.New("503") },
			expected: KindRelayFailure,
			last:     StateBuildingTransaction,
		},
		{
			name:     "user bank derivation",
			setup:    func(env *testEnv) { env.funding.deriveErr = errors.New("rpc timeout") },
			expected: KindNetworkFailure,
			last:     StateBuildingTransaction,
		},
		{
			name:     "checkpoint unavailable",
			setup:    func(env *testEnv) { env.client.SetBlockhashError(errors.New("rpc timeout")) },
			expected: KindNetworkFailure,
			last:     StateBuildingTransaction,
		},
		{
			name:     "send rejected",
			setup:    func(env *testEnv) { env.relay.sendErr = errors.New("relay is down") },
			expected: KindRelayFailure,
			last:     StateSubmitted,
		},
		{
			name:     "send reports expired blockhash",
			setup:    func(env *testEnv) { env.relay.onSend = func() { env.client.RotateBlockhash() } },
			expected: KindStaleCheckpoint,
			last:     StateSubmitted,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))
			tc.setup(env)

			result, err := env.purchaser.Purchase(env.ctx, relayIntent(newEthBuyer(t), "5.00"))
			require.Error(t, err)
			assert.Equal(t, tc.expected, result.Kind)
			assert.True(t, IsRetryable(err))
			assert.Equal(t, tc.last, env.observer.last().From)
			assert.Empty(t, env.client.Submitted())

			env.assertRecord(t, result.AttemptId, attempt.StateFailed, tc.expected)
		})
	}
}

func TestPurchase_RetryAfterStaleCheckpoint(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))
	buyer := newEthBuyer(t)

	env.relay.onSend = func() { env.client.RotateBlockhash() }

	first, err := env.purchaser.Purchase(env.ctx, relayIntent(buyer, "5.00"))
	require.Error(t, err)
	assert.Equal(t, KindStaleCheckpoint, first.Kind)

	env.relay.onSend = nil

	second, err := env.purchaser.Purchase(env.ctx, relayIntent(buyer, "5.00"))
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, second.State)
	assert.NotEqual(t, first.AttemptId, second.AttemptId)

	records, err := env.db.GetAllPurchaseAttemptsByBuyer(env.ctx, testBuyerId)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, attempt.StateFailed, records[0].State)
	assert.Equal(t, attempt.StateConfirmed, records[1].State)

	count, err := env.db.CountPurchaseAttemptsByContentAndState(env.ctx, testContentId, attempt.StateConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPurchase_WalletSubmitFailure(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))
	env.client.SetSubmitError(errors.New("node is behind"))

	wallet := newTestWallet(t)

	result, err := env.purchaser.Purchase(env.ctx, walletIntent(wallet, "5.00"))
	assert.True(t, errors.Is(err, ErrNetworkFailure))
	assert.Equal(t, StateSubmitted, env.observer.last().From)
	assert.Equal(t, KindNetworkFailure, result.Kind)
}

func TestPurchase_RelayNotConfigured(t *testing.T) {
	reset := testutil.DisableLogging()
	defer reset()

	client := memory.NewClient()
	directory := newTestDirectory(usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))
	observer := &recordingObserver{}

	purchaser, err := NewPurchaser(nil, directory, nil, nil, nil, client, observer, withManualTestOverrides(&testOverrides{}))
	require.NoError(t, err)

	_, err = purchaser.Purchase(context.Background(), relayIntent(newEthBuyer(t), "5.00"))
	assert.True(t, errors.Is(err, ErrRelayFailure))

	// Wallet purchases carry no location memo without a relay
	wallet := newTestWallet(t)
	result, err := purchaser.Purchase(context.Background(), walletIntent(wallet, "5.00"))
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)

	submitted := client.Submitted()
	require.Len(t, submitted, 1)

	d, err := DescribeTransaction(submitted[0])
	require.NoError(t, err)
	assert.Equal(t, []InstructionKind{InstructionKindTransfer, InstructionKindRoute, InstructionKindPurchaseMemo}, d.Order)
	assert.Nil(t, d.LocationMemo)
}

func TestPurchase_Canceled(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()

	result, err := env.purchaser.Purchase(ctx, relayIntent(newEthBuyer(t), "5.00"))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, KindCanceled, result.Kind)
	assert.False(t, IsRetryable(err))
	assert.Zero(t, env.directory.calls)
	assert.Zero(t, env.relay.sentCount())

	// Records are written regardless of the caller's context
	env.assertRecord(t, result.AttemptId, attempt.StateFailed, KindCanceled)
}

func TestPurchase_CanceledAfterSubmit(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()

	env.relay.onSend = cancel

	result, err := env.purchaser.Purchase(ctx, relayIntent(newEthBuyer(t), "5.00"))
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Len(t, env.client.Submitted(), 1)
}

func TestPurchase_RateLimited(t *testing.T) {
	env := setup(t, &testOverrides{maxAttemptsPerBuyerPerSecond: 2}, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))
	buyer := newEthBuyer(t)

	for i := 0; i < 2; i++ {
		_, err := env.purchaser.Purchase(env.ctx, relayIntent(buyer, "5.00"))
		require.NoError(t, err)
	}

	result, err := env.purchaser.Purchase(env.ctx, relayIntent(buyer, "5.00"))
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, KindRateLimited, result.Kind)
	assert.Equal(t, StateIdle, env.observer.last().From)
	assert.Len(t, env.client.Submitted(), 2)

	env.assertRecord(t, result.AttemptId, attempt.StateFailed, KindRateLimited)
}

func TestPurchase_RecordingDisabled(t *testing.T) {
	env := setup(t, &testOverrides{disableAttemptRecording: true}, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	result, err := env.purchaser.Purchase(env.ctx, relayIntent(newEthBuyer(t), "5.00"))
	require.NoError(t, err)

	_, err = env.db.GetPurchaseAttempt(env.ctx, result.AttemptId)
	assert.Equal(t, attempt.ErrNotFound, err)
}

func TestPurchase_Concurrent(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 2_500_000), ethSplit(t, "label", 2_500_000)))

	intents := make([]*Intent, 8)
	for i := range intents {
		intents[i] = relayIntent(newEthBuyer(t), "5.00")
	}

	var wg sync.WaitGroup
	results := make([]*Result, len(intents))
	errs := make([]error, len(intents))
	for i := range intents {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.purchaser.Purchase(env.ctx, intents[i])
		}(i)
	}
	wg.Wait()

	attemptIds := make(map[string]struct{})
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, StateConfirmed, results[i].State)
		attemptIds[results[i].AttemptId] = struct{}{}
	}
	assert.Len(t, attemptIds, 8)
	assert.Len(t, env.client.Submitted(), 8)

	count, err := env.db.CountPurchaseAttemptsByContentAndState(env.ctx, testContentId, attempt.StateConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 8, count)
}

func TestGetPurchaseTransaction(t *testing.T) {
	env := setup(t, nil, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))
	buyer := newEthBuyer(t)

	prepared, err := env.purchaser.GetPurchaseTransaction(env.ctx, relayIntent(buyer, "5.00"))
	require.NoError(t, err)

	assert.Equal(t, PathRelay, prepared.Path)
	assert.EqualValues(t, env.relay.feePayerKey(), prepared.FeePayer)
	assert.EqualValues(t, 5_000_000, prepared.Splits.Total)
	assert.Equal(t, AccessTypeStream, prepared.Resolution.AccessType)
	assert.NotNil(t, prepared.Instructions.Recovery)
	assert.NotNil(t, prepared.Instructions.LocationMemo)

	expectedSource, err := env.funding.DeriveDelegatedAccount(env.ctx, buyer.Address(), usdc.TokenMint)
	require.NoError(t, err)
	assert.EqualValues(t, expectedSource, prepared.FundingSource)

	checkpoint, err := env.client.GetLatestBlockhash()
	require.NoError(t, err)
	assert.Equal(t, checkpoint, prepared.Checkpoint)

	d, err := prepared.Describe()
	require.NoError(t, err)
	assert.EqualValues(t, 5_000_000, d.TransferAmount())
	assert.EqualValues(t, 5_000_000, d.Route.Total)

	// Nothing is sent or recorded
	assert.Zero(t, env.relay.sentCount())
	assert.Equal(t, StateAwaitingSignature, env.observer.last().To)
	_, err = env.db.GetPurchaseAttempt(env.ctx, prepared.AttemptId)
	assert.Equal(t, attempt.ErrNotFound, err)

	_, err = env.purchaser.GetPurchaseTransaction(env.ctx, relayIntent(buyer, "4.00"))
	assert.True(t, errors.Is(err, ErrPriceChanged))
	assert.Equal(t, StateFailed, env.observer.last().To)
}

func TestGetPurchaseTransaction_DownloadAccess(t *testing.T) {
	info := usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000))
	info.IsDownloadGated = true
	info.DownloadConditions = NewUsdcPurchaseGate(900, payoutSplit(t, "owner", 9_000_000))
	env := setup(t, nil, info)

	intent := walletIntent(newTestWallet(t), "9.00")
	intent.AccessType = AccessTypeDownload

	prepared, err := env.purchaser.GetPurchaseTransaction(env.ctx, intent)
	require.NoError(t, err)

	d, err := prepared.Describe()
	require.NoError(t, err)
	assert.Equal(t, "download", d.PurchaseMemo.AccessType)
	assert.EqualValues(t, 9_000_000, d.TransferAmount())
}

func TestGetPurchaseTransaction_FeePayerOverride(t *testing.T) {
	override := newPublicKey(t)
	env := setup(t, &testOverrides{relayFeePayerOverride: base58.Encode(override)}, usdcGatedTrack(500, payoutSplit(t, "owner", 5_000_000)))

	prepared, err := env.purchaser.GetPurchaseTransaction(env.ctx, relayIntent(newEthBuyer(t), "5.00"))
	require.NoError(t, err)
	assert.EqualValues(t, override, prepared.FeePayer)
	assert.Zero(t, env.relay.feePayerCalls)
}

func TestNewPurchaser_Validation(t *testing.T) {
	client := memory.NewClient()
	directory := newTestDirectory()

	_, err := NewPurchaser(nil, nil, nil, nil, nil, client, nil, withManualTestOverrides(&testOverrides{}))
	assert.Error(t, err)

	_, err = NewPurchaser(nil, directory, nil, nil, nil, nil, nil, withManualTestOverrides(&testOverrides{}))
	assert.Error(t, err)

	_, err = NewPurchaser(nil, directory, nil, nil, nil, client, nil, withManualTestOverrides(&testOverrides{usdcMint: "not-a-mint"}))
	assert.Error(t, err)

	_, err = NewPurchaser(nil, directory, nil, nil, nil, client, nil, withManualTestOverrides(&testOverrides{relayFeePayerOverride: "abc"}))
	assert.Error(t, err)

	purchaser, err := NewPurchaser(nil, directory, nil, nil, nil, client, nil, withManualTestOverrides(&testOverrides{usdcMint: usdcMintString()}))
	require.NoError(t, err)
	assert.EqualValues(t, usdc.TokenMint, purchaser.factory.Mint())
}

var _ CheckpointProvider = (solana.Client)(nil)
