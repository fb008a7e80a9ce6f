package purchase

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/content-purchase/pkg/data"
	"github.com/code-payments/content-purchase/pkg/data/attempt"
	"github.com/code-payments/content-purchase/pkg/metrics"
	"github.com/code-payments/content-purchase/pkg/pointer"
	"github.com/code-payments/content-purchase/pkg/rate"
	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/paymentrouter"
	"github.com/code-payments/content-purchase/pkg/usdc"
)

const (
	metricsStructName = "purchase.purchaser"
)

// PreparedPurchase is a fully assembled, unsigned purchase transaction along
// with the inputs it was built from.
type PreparedPurchase struct {
	AttemptId string
	Path      Path

	Resolution   *Resolution
	Splits       *PreparedSplits
	Instructions *InstructionSet

	Transaction   solana.Transaction
	FeePayer      ed25519.PublicKey
	FundingSource ed25519.PublicKey
	Checkpoint    solana.Blockhash
}

// Result is the outcome of a purchase attempt.
type Result struct {
	AttemptId string
	Path      Path
	State     State

	// Set when State is StateConfirmed
	Signature solana.Signature

	// Set when State is StateFailed
	Kind Kind
	Err  error
}

// Purchaser drives purchase attempts from validation through submission.
type Purchaser struct {
	log  *logrus.Entry
	conf *conf

	data        data.DatabaseData
	content     ContentDirectory
	splits      *SplitPreparer
	factory     *InstructionFactory
	relay       RelayService
	funding     FundingAccountService
	connection  solana.Client
	checkpoints CheckpointProvider
	observer    Observer
	limiter     rate.Limiter

	feePayerOverride ed25519.PublicKey
}

// NewPurchaser returns a Purchaser. The relay and funding services may be nil
// when only wallet path purchases are made, in which case no location memo is
// attached.
func NewPurchaser(
	data data.DatabaseData,
	content ContentDirectory,
	splitResolver SplitResolutionService,
	relay RelayService,
	funding FundingAccountService,
	connection solana.Client,
	observer Observer,
	configProvider ConfigProvider,
) (*Purchaser, error) {
	if content == nil {
		return nil, errors.New("content directory is required")
	}
	if connection == nil {
		return nil, errors.New("solana connection is required")
	}

	ctx := context.Background()
	conf := configProvider()

	mint, err := base58.Decode(conf.usdcMint.Get(ctx))
	if err != nil || len(mint) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid usdc mint: %q", conf.usdcMint.Get(ctx))
	}

	var feePayerOverride ed25519.PublicKey
	if value := conf.relayFeePayerOverride.Get(ctx); len(value) > 0 {
		decoded, err := base58.Decode(value)
		if err != nil || len(decoded) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid relay fee payer override: %q", value)
		}
		feePayerOverride = decoded
	}

	var limiter rate.Limiter = rate.NoLimiter{}
	if limit := conf.maxAttemptsPerBuyerPerSecond.Get(ctx); limit > 0 {
		limiter = rate.NewLocalRateLimiter(limit)
	}

	if observer == nil {
		observer = MultiObserver{}
	}

	return &Purchaser{
		log:  logrus.StandardLogger().WithField("type", "purchase/purchaser"),
		conf: conf,

		data:        data,
		content:     content,
		splits:      NewSplitPreparer(splitResolver, mint),
		factory:     NewInstructionFactory(mint, usdc.Decimals),
		relay:       relay,
		funding:     funding,
		connection:  connection,
		checkpoints: connection,
		observer:    observer,
		limiter:     limiter,

		feePayerOverride: feePayerOverride,
	}, nil
}

// GetPurchaseTransaction validates the intent and builds the unsigned
// purchase transaction without sending it. The attempt ends in
// StateAwaitingSignature, or StateFailed.
func (p *Purchaser) GetPurchaseTransaction(ctx context.Context, intent *Intent) (*PreparedPurchase, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetPurchaseTransaction")
	defer tracer.End()

	a := p.newAttempt(intent, false)

	prepared, err := p.build(ctx, a)
	if err != nil {
		p.fail(ctx, a, err)
		tracer.OnError(err)
		return nil, err
	}

	p.transition(ctx, a, StateAwaitingSignature, solana.Signature{}, nil)
	return prepared, nil
}

// Purchase runs a complete purchase attempt. The returned Result is always
// set. When the attempt does not confirm, the error it failed with is also
// returned.
//
// ctx is honoured until the transaction is submitted. Once sent, the send is
// allowed to complete regardless of ctx.
func (p *Purchaser) Purchase(ctx context.Context, intent *Intent) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Purchase")
	defer tracer.End()

	a := p.newAttempt(intent, !p.conf.disableAttemptRecording.Get(ctx))

	result, err := p.purchase(ctx, a)
	if err != nil {
		tracer.OnError(err)
	}
	return result, err
}

func (p *Purchaser) purchase(ctx context.Context, a *attemptState) (*Result, error) {
	if a.intent != nil {
		allowed, err := p.limiter.Allow(a.intent.BuyerId)
		if err != nil {
			p.log.WithError(err).Warn("failure checking purchase rate limit")
		} else if !allowed {
			return p.fail(ctx, a, errors.Wrapf(ErrRateLimited, "buyer %s", a.intent.BuyerId))
		}
	}

	prepared, err := p.build(ctx, a)
	if err != nil {
		return p.fail(ctx, a, err)
	}

	p.transition(ctx, a, StateAwaitingSignature, solana.Signature{}, nil)

	if err := a.strategy.authorize(ctx); err != nil {
		return p.fail(ctx, a, err)
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, a, err)
	}

	sendCtx := context.WithoutCancel(ctx)

	p.transition(sendCtx, a, StateSubmitted, solana.Signature{}, nil)

	sig, err := a.strategy.submit(sendCtx, prepared.Transaction)
	if err != nil {
		return p.fail(sendCtx, a, err)
	}

	p.transition(sendCtx, a, StateConfirmed, sig, nil)

	return &Result{
		AttemptId: a.id,
		Path:      a.path,
		State:     StateConfirmed,
		Signature: sig,
	}, nil
}

// build runs the Validating and BuildingTransaction steps.
func (p *Purchaser) build(ctx context.Context, a *attemptState) (*PreparedPurchase, error) {
	if err := a.validateIntent(); err != nil {
		return nil, err
	}
	intent := a.intent

	p.transition(ctx, a, StateValidating, solana.Signature{}, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := p.content.GetAccessInfo(ctx, intent.ContentId, intent.BuyerId)
	if err != nil {
		return nil, classify(err, ErrNetworkFailure, "failed to get content access info")
	}

	res, err := Resolve(info, intent.BuyerId, intent.AccessType)
	if err != nil {
		return nil, err
	}
	a.resolution = res

	if err := ValidatePrice(intent.ConfirmedPrice, res); err != nil {
		return nil, err
	}

	extra, err := extraQuarks(intent.ExtraAmount)
	if err != nil {
		return nil, err
	}
	a.extra = extra

	p.transition(ctx, a, StateBuildingTransaction, solana.Signature{}, nil)

	splits, err := p.splits.Prepare(ctx, res.Splits, extra)
	if err != nil {
		return nil, err
	}
	if splits.SplitAmount() != res.PriceQuarks {
		return nil, errors.Wrapf(ErrSplitMismatch, "splits sum to %d, price is %d", splits.SplitAmount(), res.PriceQuarks)
	}

	route, err := p.factory.MakeRouteInstruction(splits, splits.Total)
	if err != nil {
		return nil, err
	}

	purchaseMemo, err := p.factory.MakePurchaseMemoInstruction(paymentrouter.PurchaseMemo{
		ContentType: string(p.contentType(intent, info)),
		ContentId:   intent.ContentId,
		BlockNumber: info.BlockNumber,
		BuyerId:     intent.BuyerId,
		AccessType:  string(res.AccessType),
	})
	if err != nil {
		return nil, err
	}

	locationMemo, err := p.locationMemo(ctx)
	if err != nil {
		return nil, err
	}

	destination, err := p.factory.ProgramTokenAccount()
	if err != nil {
		return nil, err
	}

	funding, err := a.strategy.buildFundingInstructions(ctx, destination, splits.Total)
	if err != nil {
		return nil, err
	}

	feePayer, err := a.strategy.feePayer(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	checkpoint, err := p.checkpoints.GetLatestBlockhash()
	if err != nil {
		return nil, classify(err, ErrNetworkFailure, "failed to get latest blockhash")
	}

	set := &InstructionSet{
		Recovery:     funding.recovery,
		Transfer:     &funding.transfer,
		Route:        &route,
		PurchaseMemo: &purchaseMemo,
		LocationMemo: locationMemo,
	}

	txn, err := Assemble(set, feePayer, checkpoint)
	if err != nil {
		return nil, err
	}

	return &PreparedPurchase{
		AttemptId: a.id,
		Path:      a.path,

		Resolution:   res,
		Splits:       splits,
		Instructions: set,

		Transaction:   txn,
		FeePayer:      feePayer,
		FundingSource: funding.source,
		Checkpoint:    checkpoint,
	}, nil
}

func (p *Purchaser) locationMemo(ctx context.Context) (*solana.Instruction, error) {
	if p.relay == nil {
		return nil, nil
	}

	ixn, err := p.relay.GetLocationInstruction(ctx)
	if err != nil {
		return nil, classify(err, ErrRelayFailure, "failed to get location instruction")
	}
	return &ixn, nil
}

func (p *Purchaser) contentType(intent *Intent, info *ContentAccessInfo) ContentType {
	if len(info.ContentType) > 0 {
		return info.ContentType
	}
	if len(intent.ContentType) > 0 {
		return intent.ContentType
	}
	return ContentType(p.conf.contentType.Get(context.Background()))
}

func (p *Purchaser) fundingStrategy(intent *Intent) fundingStrategy {
	if intent != nil && intent.Wallet != nil {
		return &walletPath{
			wallet:     intent.Wallet,
			factory:    p.factory,
			connection: p.connection,
		}
	}

	var buyer Authenticator
	if intent != nil {
		buyer = intent.Buyer
	}

	return &relayPath{
		buyer:            buyer,
		relay:            p.relay,
		funding:          p.funding,
		mint:             p.factory.Mint(),
		feePayerOverride: p.feePayerOverride,
	}
}

// attemptState tracks a single purchase attempt.
type attemptState struct {
	id       string
	intent   *Intent
	path     Path
	strategy fundingStrategy
	state    State

	resolution *Resolution
	extra      uint64

	record    bool
	persisted *attempt.Record
}

func (p *Purchaser) newAttempt(intent *Intent, record bool) *attemptState {
	strategy := p.fundingStrategy(intent)

	return &attemptState{
		id:       uuid.New().String(),
		intent:   intent,
		path:     strategy.path(),
		strategy: strategy,
		state:    StateIdle,
		record:   record && p.data != nil,
	}
}

func (a *attemptState) validateIntent() error {
	switch {
	case a.intent == nil:
		return errors.Wrap(ErrInvalidInstructionInput, "purchase intent is required")
	case len(a.intent.ContentId) == 0:
		return errors.Wrap(ErrInvalidInstructionInput, "content id is required")
	case len(a.intent.BuyerId) == 0:
		return errors.Wrap(ErrInvalidInstructionInput, "buyer id is required")
	}
	return nil
}

func (p *Purchaser) fail(ctx context.Context, a *attemptState, err error) (*Result, error) {
	p.transition(ctx, a, StateFailed, solana.Signature{}, err)

	return &Result{
		AttemptId: a.id,
		Path:      a.path,
		State:     StateFailed,
		Kind:      KindOf(err),
		Err:       err,
	}, err
}

func (p *Purchaser) transition(ctx context.Context, a *attemptState, to State, sig solana.Signature, err error) {
	t := Transition{
		AttemptId: a.id,
		Path:      a.path,
		From:      a.state,
		To:        to,
		Signature: sig,
		Err:       err,
		At:        time.Now(),
	}
	if a.intent != nil {
		t.ContentId = a.intent.ContentId
		t.BuyerId = a.intent.BuyerId
	}

	a.state = to

	p.observer.OnTransition(ctx, t)
	p.recordTransition(ctx, a, t)
}

// recordTransition persists the attempt. Failures are logged and otherwise
// ignored, since records never gate a purchase.
func (p *Purchaser) recordTransition(ctx context.Context, a *attemptState, t Transition) {
	if !a.record || len(t.ContentId) == 0 || len(t.BuyerId) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)

	log := p.log.WithFields(logrus.Fields{
		"method":  "recordTransition",
		"attempt": a.id,
		"state":   t.To.String(),
	})

	record := &attempt.Record{
		AttemptId:   a.id,
		ContentId:   t.ContentId,
		ContentType: string(a.intent.ContentType),
		BuyerId:     t.BuyerId,
		Path:        toAttemptPath(a.path),
		State:       toAttemptState(t.To),
		ExtraQuarks: a.extra,
	}
	if len(record.ContentType) == 0 {
		record.ContentType = p.conf.contentType.Get(ctx)
	}
	if a.resolution != nil {
		record.AccessType = string(a.resolution.AccessType)
		record.PriceQuarks = a.resolution.PriceQuarks
		record.TotalQuarks = a.resolution.PriceQuarks + a.extra
	}
	if t.To == StateConfirmed {
		record.Signature = pointer.To(t.Signature.String())
	}
	if t.To == StateFailed {
		record.FailureKind = pointer.To(string(KindOf(t.Err)))
	}

	var err error
	if a.persisted == nil {
		err = p.data.CreatePurchaseAttempt(ctx, record)
	} else {
		record.Id = a.persisted.Id
		err = p.data.UpdatePurchaseAttempt(ctx, record)
	}
	if err != nil {
		log.WithError(err).Warn("failure recording purchase attempt")
		return
	}

	a.persisted = record
}

func toAttemptState(s State) attempt.State {
	switch s {
	case StateValidating:
		return attempt.StateValidating
	case StateBuildingTransaction:
		return attempt.StateBuildingTransaction
	case StateAwaitingSignature:
		return attempt.StateAwaitingSignature
	case StateSubmitted:
		return attempt.StateSubmitted
	case StateConfirmed:
		return attempt.StateConfirmed
	case StateFailed:
		return attempt.StateFailed
	}
	return attempt.StateUnknown
}

func toAttemptPath(p Path) attempt.Path {
	switch p {
	case PathWallet:
		return attempt.PathWallet
	case PathRelay:
		return attempt.PathRelay
	}
	return attempt.PathUnknown
}
