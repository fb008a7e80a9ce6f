package purchase

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
)

type fundingInstructions struct {
	recovery *solana.Instruction
	transfer solana.Instruction

	// The account funds are drawn from
	source ed25519.PublicKey
}

// fundingStrategy moves a purchase total into the program token account and
// gets the resulting transaction on chain. It is chosen once per attempt.
type fundingStrategy interface {
	path() Path
	feePayer(ctx context.Context) (ed25519.PublicKey, error)
	buildFundingInstructions(ctx context.Context, destination ed25519.PublicKey, total uint64) (*fundingInstructions, error)

	// authorize verifies the path can obtain the signatures it needs before
	// anything is sent.
	authorize(ctx context.Context) error

	submit(ctx context.Context, txn solana.Transaction) (solana.Signature, error)
}

type walletPath struct {
	wallet     *ExternalWallet
	factory    *InstructionFactory
	connection solana.Client
}

func (w *walletPath) path() Path {
	return PathWallet
}

func (w *walletPath) address() ed25519.PublicKey {
	if len(w.wallet.Address) > 0 {
		return w.wallet.Address
	}
	if w.wallet.Adapter != nil {
		return w.wallet.Adapter.PublicKey()
	}
	return nil
}

func (w *walletPath) feePayer(_ context.Context) (ed25519.PublicKey, error) {
	address := w.address()
	if len(address) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrWalletNotConnected, "no wallet address")
	}
	return address, nil
}

func (w *walletPath) buildFundingInstructions(ctx context.Context, _ ed25519.PublicKey, total uint64) (*fundingInstructions, error) {
	source, err := w.feePayer(ctx)
	if err != nil {
		return nil, err
	}

	transfer, err := w.factory.MakeWalletTransferInstruction(source, total)
	if err != nil {
		return nil, err
	}

	return &fundingInstructions{
		transfer: transfer,
		source:   source,
	}, nil
}

func (w *walletPath) authorize(_ context.Context) error {
	if w.wallet.Adapter == nil {
		return errors.Wrap(ErrWalletNotConnected, "no wallet adapter")
	}

	connected := w.wallet.Adapter.PublicKey()
	if len(connected) != ed25519.PublicKeySize {
		return errors.Wrap(ErrWalletNotConnected, "no wallet selected")
	}

	if !bytes.Equal(connected, w.address()) {
		return errors.Wrapf(
			ErrWalletNotConnected,
			"wallet %s is connected, expected %s",
			base58.Encode(connected),
			base58.Encode(w.address()),
		)
	}

	return nil
}

func (w *walletPath) submit(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	sig, err := w.wallet.Adapter.SendTransaction(ctx, txn, w.connection)
	if err != nil {
		return solana.Signature{}, sendError(err, ErrNetworkFailure)
	}
	return sig, nil
}

type relayPath struct {
	buyer   Authenticator
	relay   RelayService
	funding FundingAccountService
	mint    ed25519.PublicKey

	feePayerOverride ed25519.PublicKey
	cachedFeePayer   ed25519.PublicKey
}

func (r *relayPath) path() Path {
	return PathRelay
}

func (r *relayPath) feePayer(ctx context.Context) (ed25519.PublicKey, error) {
	if len(r.feePayerOverride) > 0 {
		return r.feePayerOverride, nil
	}
	if len(r.cachedFeePayer) > 0 {
		return r.cachedFeePayer, nil
	}
	if r.relay == nil {
		return nil, errors.Wrap(ErrRelayFailure, "relay is not configured")
	}

	feePayer, err := r.relay.GetFeePayer(ctx)
	if err != nil {
		return nil, classify(err, ErrRelayFailure, "failed to get relay fee payer")
	}
	if len(feePayer) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrRelayFailure, "relay returned an invalid fee payer")
	}

	r.cachedFeePayer = feePayer
	return feePayer, nil
}

func (r *relayPath) buildFundingInstructions(ctx context.Context, destination ed25519.PublicKey, total uint64) (*fundingInstructions, error) {
	if err := r.authorize(ctx); err != nil {
		return nil, err
	}
	if r.relay == nil || r.funding == nil {
		return nil, errors.Wrap(ErrRelayFailure, "relay is not configured")
	}
	if total == 0 {
		return nil, errors.Wrap(ErrInvalidInstructionInput, "transfer amount is zero")
	}

	feePayer, err := r.feePayer(ctx)
	if err != nil {
		return nil, err
	}

	ethWallet := r.buyer.Address()

	source, err := r.funding.DeriveDelegatedAccount(ctx, ethWallet, r.mint)
	if err != nil {
		return nil, classify(err, ErrNetworkFailure, "failed to derive user bank")
	}

	args := &TransferArgs{
		EthWallet:        ethWallet,
		Mint:             r.mint,
		Destination:      destination,
		Amount:           total,
		FeePayer:         feePayer,
		InstructionIndex: 0,
		Signer:           r.buyer,
	}

	recovery, err := r.funding.CreateTransferSecpInstruction(ctx, args)
	if err != nil {
		return nil, classify(err, ErrNetworkFailure, "failed to create transfer signature instruction")
	}

	transfer, err := r.funding.CreateTransferInstruction(ctx, args)
	if err != nil {
		return nil, classify(err, ErrNetworkFailure, "failed to create transfer instruction")
	}

	return &fundingInstructions{
		recovery: &recovery,
		transfer: transfer,
		source:   source,
	}, nil
}

func (r *relayPath) authorize(_ context.Context) error {
	if r.buyer == nil {
		return errors.Wrap(ErrUnauthenticated, "relay purchases require a buyer identity")
	}
	return nil
}

func (r *relayPath) submit(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	if r.relay == nil {
		return solana.Signature{}, errors.Wrap(ErrRelayFailure, "relay is not configured")
	}

	sig, err := r.relay.Send(ctx, txn)
	if err != nil {
		return solana.Signature{}, sendError(err, ErrRelayFailure)
	}
	return sig, nil
}

// sendError maps a failed send. An expired blockhash is a stale checkpoint
// regardless of which path reported it.
func sendError(err error, fallback error) error {
	if solana.IsBlockhashNotFound(err) {
		return errors.Wrap(ErrStaleCheckpoint, err.Error())
	}
	return classify(err, fallback, "failed to send transaction")
}
