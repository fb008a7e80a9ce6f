package purchase

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/claimabletokens"
	"github.com/code-payments/content-purchase/pkg/solana/memo"
	"github.com/code-payments/content-purchase/pkg/solana/memory"
	"github.com/code-payments/content-purchase/pkg/solana/secp256k1"
	"github.com/code-payments/content-purchase/pkg/testutil"
	"github.com/code-payments/content-purchase/pkg/usdc"
)

const (
	testContentId = "D7KyD"
	testOwnerId   = "owner"
	testBuyerId   = "buyer"
	testBlock     = 98765
)

func newKey(t *testing.T) ed25519.PrivateKey {
	return testutil.GenerateSolanaKeypair(t)
}

func newPublicKey(t *testing.T) ed25519.PublicKey {
	return testutil.GenerateSolanaKeys(t, 1)[0]
}

func newEthAddress(t *testing.T) common.Address {
	return newEthBuyer(t).Address()
}

// usdcGatedTrack returns a stream gated track priced at priceCents, split
// between the given payees.
func usdcGatedTrack(priceCents uint64, splits ...RawSplit) *ContentAccessInfo {
	return &ContentAccessInfo{
		ContentId:        testContentId,
		ContentType:      ContentTypeTrack,
		OwnerId:          testOwnerId,
		IsStreamGated:    true,
		StreamConditions: NewUsdcPurchaseGate(priceCents, splits...),
		BlockNumber:      testBlock,
	}
}

func payoutSplit(t *testing.T, userId string, quarks uint64) RawSplit {
	return RawSplit{
		UserId:       userId,
		Percentage:   decimal.NewFromInt(50),
		PayoutWallet: newPublicKey(t),
		Amount:       quarks,
	}
}

func ethSplit(t *testing.T, userId string, quarks uint64) RawSplit {
	address := newEthAddress(t)
	return RawSplit{
		UserId:     userId,
		Percentage: decimal.NewFromInt(50),
		EthWallet:  &address,
		Amount:     quarks,
	}
}

type testDirectory struct {
	mu      sync.Mutex
	content map[string]*ContentAccessInfo
	err     error
	calls   int
}

func newTestDirectory(infos ...*ContentAccessInfo) *testDirectory {
	d := &testDirectory{content: make(map[string]*ContentAccessInfo)}
	for _, info := range infos {
		d.content[info.ContentId] = info
	}
	return d
}

func (d *testDirectory) GetAccessInfo(_ context.Context, contentId, _ string) (*ContentAccessInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.err != nil {
		return nil, d.err
	}

	info, ok := d.content[contentId]
	if !ok {
		return nil, ErrContentNotFound
	}
	cloned := *info
	return &cloned, nil
}

// testSplitResolver derives user banks without touching the chain.
type testSplitResolver struct {
	mu    sync.Mutex
	err   error
	calls []common.Address
}

func (r *testSplitResolver) DeriveOrCreateAccount(_ context.Context, ethWallet common.Address, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, ethWallet)
	if r.err != nil {
		return nil, r.err
	}
	return claimabletokens.GetUserBankAddress(mint, ethWallet)
}

type testRelay struct {
	mu sync.Mutex

	client   *memory.Client
	feePayer ed25519.PrivateKey

	feePayerErr error
	locationErr error
	sendErr     error

	// onSend runs before the transaction is submitted
	onSend func()

	feePayerCalls int
	sent          []solana.Transaction
}

func newTestRelay(t *testing.T, client *memory.Client) *testRelay {
	return &testRelay{
		client:   client,
		feePayer: newKey(t),
	}
}

func (r *testRelay) feePayerKey() ed25519.PublicKey {
	return r.feePayer.Public().(ed25519.PublicKey)
}

func (r *testRelay) GetLocationInstruction(_ context.Context) (solana.Instruction, error) {
	if r.locationErr != nil {
		return solana.Instruction{}, r.locationErr
	}
	return memo.InstructionV2(`geo:{"city":"Austin","region":"TX","country":"US"}`), nil
}

func (r *testRelay) GetFeePayer(_ context.Context) (ed25519.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.feePayerCalls++
	if r.feePayerErr != nil {
		return nil, r.feePayerErr
	}
	return r.feePayerKey(), nil
}

func (r *testRelay) Send(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	if r.onSend != nil {
		r.onSend()
	}
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sendErr != nil {
		return solana.Signature{}, r.sendErr
	}
	if err := txn.Sign(r.feePayer); err != nil {
		return solana.Signature{}, err
	}

	sig, err := r.client.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, err
	}

	r.sent = append(r.sent, txn)
	return sig, nil
}

func (r *testRelay) sentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sent)
}

// testFunding spends from user banks whose nonce account does not exist yet.
type testFunding struct {
	deriveErr error
}

func (f *testFunding) DeriveDelegatedAccount(_ context.Context, ethWallet common.Address, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	if f.deriveErr != nil {
		return nil, f.deriveErr
	}
	return claimabletokens.GetUserBankAddress(mint, ethWallet)
}

func (f *testFunding) CreateTransferSecpInstruction(ctx context.Context, args *TransferArgs) (solana.Instruction, error) {
	message := claimabletokens.TransferMessage{
		Destination: args.Destination,
		Amount:      args.Amount,
	}.Marshal()

	sig, err := args.Signer.Sign(ctx, message)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return secp256k1.FromRecoverableSignature(args.EthWallet, sig, message, args.InstructionIndex)
}

func (f *testFunding) CreateTransferInstruction(_ context.Context, args *TransferArgs) (solana.Instruction, error) {
	return claimabletokens.Transfer(&claimabletokens.TransferArgs{
		Payer:       args.FeePayer,
		Mint:        args.Mint,
		EthAddress:  args.EthWallet,
		Destination: args.Destination,
	})
}

type testEthBuyer struct {
	key     *ecdsa.PrivateKey
	signErr error
}

func newEthBuyer(t *testing.T) *testEthBuyer {
	return &testEthBuyer{key: testutil.GenerateEthKey(t)}
}

func (b *testEthBuyer) Address() common.Address {
	return crypto.PubkeyToAddress(b.key.PublicKey)
}

func (b *testEthBuyer) Sign(_ context.Context, payload []byte) ([]byte, error) {
	if b.signErr != nil {
		return nil, b.signErr
	}
	return crypto.Sign(crypto.Keccak256(payload), b.key)
}

type testWallet struct {
	mu        sync.Mutex
	key       ed25519.PrivateKey
	connected bool
	sent      []solana.Transaction
}

func newTestWallet(t *testing.T) *testWallet {
	return &testWallet{
		key:       newKey(t),
		connected: true,
	}
}

func (w *testWallet) address() ed25519.PublicKey {
	return w.key.Public().(ed25519.PublicKey)
}

func (w *testWallet) PublicKey() ed25519.PublicKey {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.connected {
		return nil
	}
	return w.address()
}

func (w *testWallet) SendTransaction(_ context.Context, txn solana.Transaction, connection solana.Client) (solana.Signature, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := txn.Sign(w.key); err != nil {
		return solana.Signature{}, err
	}

	sig, err := connection.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, err
	}

	w.sent = append(w.sent, txn)
	return sig, nil
}

func (w *testWallet) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.sent)
}

// recordingObserver keeps every transition it sees.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
}

func (o *recordingObserver) OnTransition(_ context.Context, t Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.transitions = append(o.transitions, t)
}

func (o *recordingObserver) states() []State {
	o.mu.Lock()
	defer o.mu.Unlock()

	states := make([]State, len(o.transitions))
	for i, t := range o.transitions {
		states[i] = t.To
	}
	return states
}

func (o *recordingObserver) last() Transition {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.transitions[len(o.transitions)-1]
}

func usdcMintString() string {
	return base58.Encode(usdc.TokenMint)
}
