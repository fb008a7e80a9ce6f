package userbank

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/content-purchase/pkg/cache"
	"github.com/code-payments/content-purchase/pkg/data"
	"github.com/code-payments/content-purchase/pkg/metrics"
	"github.com/code-payments/content-purchase/pkg/purchase"
	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/claimabletokens"
	"github.com/code-payments/content-purchase/pkg/solana/secp256k1"
	"github.com/code-payments/content-purchase/pkg/solana/token"
	"github.com/code-payments/content-purchase/pkg/sync"
)

const (
	metricsStructName = "userbank.service"

	addressCacheBudget  = 10_000
	creationLockStripes = 64
)

// Service derives, creates and spends from claimable token user banks. It
// serves as both the funding account service for relay purchases and the
// split resolution service for payees.
type Service struct {
	log   *logrus.Entry
	data  data.BlockchainData
	relay purchase.RelayService

	// existing caches user banks known to be initialized on chain
	existing cache.Cache
	creating *sync.StripedLock
}

// NewService returns a new Service. relay may be nil, in which case missing
// user banks cannot be created.
func NewService(data data.BlockchainData, relay purchase.RelayService) *Service {
	log := logrus.StandardLogger().WithField("type", "userbank/service")

	existing := cache.NewCache(addressCacheBudget)
	existing.SetLogger(log)

	return &Service{
		log:      log,
		data:     data,
		relay:    relay,
		existing: existing,
		creating: sync.NewStripedLock(creationLockStripes),
	}
}

// DeriveDelegatedAccount returns the user bank controlled by ethWallet.
func (s *Service) DeriveDelegatedAccount(ctx context.Context, ethWallet common.Address, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "DeriveDelegatedAccount")
	defer tracer.End()

	if len(mint) != ed25519.PublicKeySize {
		err := errors.Wrap(purchase.ErrInvalidInstructionInput, "invalid mint")
		tracer.OnError(err)
		return nil, err
	}

	address, err := claimabletokens.GetUserBankAddress(mint, ethWallet)
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(purchase.ErrInvalidInstructionInput, err.Error())
	}
	return address, nil
}

// CreateTransferSecpInstruction has the buyer sign the next transfer out of
// their user bank and returns the instruction carrying that signature.
func (s *Service) CreateTransferSecpInstruction(ctx context.Context, args *purchase.TransferArgs) (solana.Instruction, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateTransferSecpInstruction")
	defer tracer.End()

	instruction, err := s.createTransferSecpInstruction(ctx, args)
	if err != nil {
		tracer.OnError(err)
	}
	return instruction, err
}

func (s *Service) createTransferSecpInstruction(ctx context.Context, args *purchase.TransferArgs) (solana.Instruction, error) {
	if err := validateTransferArgs(args); err != nil {
		return solana.Instruction{}, err
	}
	if args.Signer == nil {
		return solana.Instruction{}, errors.Wrap(purchase.ErrUnauthenticated, "no signer")
	}
	if args.Signer.Address() != args.EthWallet {
		return solana.Instruction{}, errors.Wrapf(
			purchase.ErrUnauthenticated,
			"signer %s does not control %s",
			args.Signer.Address().Hex(),
			args.EthWallet.Hex(),
		)
	}

	nonce, err := s.getNonce(ctx, args.EthWallet, args.Mint)
	if err != nil {
		return solana.Instruction{}, err
	}

	message := claimabletokens.TransferMessage{
		Destination: args.Destination,
		Amount:      args.Amount,
		Nonce:       nonce,
	}.Marshal()

	signature, err := args.Signer.Sign(ctx, message)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(purchase.ErrUnauthenticated, err.Error())
	}

	if err := verifySignature(args.EthWallet, signature, message); err != nil {
		return solana.Instruction{}, err
	}

	instruction, err := secp256k1.FromRecoverableSignature(args.EthWallet, signature, message, args.InstructionIndex)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(purchase.ErrUnauthenticated, err.Error())
	}
	return instruction, nil
}

// CreateTransferInstruction moves args.Amount out of the buyer's user bank.
// It must directly follow the instruction from CreateTransferSecpInstruction.
func (s *Service) CreateTransferInstruction(ctx context.Context, args *purchase.TransferArgs) (solana.Instruction, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateTransferInstruction")
	defer tracer.End()

	if err := validateTransferArgs(args); err != nil {
		tracer.OnError(err)
		return solana.Instruction{}, err
	}

	instruction, err := claimabletokens.Transfer(&claimabletokens.TransferArgs{
		Payer:       args.FeePayer,
		Mint:        args.Mint,
		EthAddress:  args.EthWallet,
		Destination: args.Destination,
	})
	if err != nil {
		tracer.OnError(err)
		return solana.Instruction{}, errors.Wrap(purchase.ErrInvalidInstructionInput, err.Error())
	}
	return instruction, nil
}

// DeriveOrCreateAccount returns the user bank of ethWallet, creating it
// through the relay when it does not exist yet.
func (s *Service) DeriveOrCreateAccount(ctx context.Context, ethWallet common.Address, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "DeriveOrCreateAccount")
	defer tracer.End()

	address, err := s.deriveOrCreateAccount(ctx, ethWallet, mint)
	if err != nil {
		tracer.OnError(err)
	}
	return address, err
}

func (s *Service) deriveOrCreateAccount(ctx context.Context, ethWallet common.Address, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	if len(mint) != ed25519.PublicKeySize {
		return nil, errors.Wrap(purchase.ErrInvalidInstructionInput, "invalid mint")
	}

	address, err := s.DeriveDelegatedAccount(ctx, ethWallet, mint)
	if err != nil {
		return nil, err
	}

	key := base58.Encode(address)
	if _, ok := s.existing.Retrieve(key); ok {
		return address, nil
	}

	unlock := s.creating.Lock(address)
	defer unlock()

	if _, ok := s.existing.Retrieve(key); ok {
		return address, nil
	}

	log := s.log.WithFields(logrus.Fields{
		"method":     "DeriveOrCreateAccount",
		"eth_wallet": ethWallet.Hex(),
		"user_bank":  key,
	})

	account, err := s.data.GetBlockchainTokenAccountInfo(ctx, address, solana.CommitmentFinalized)
	switch {
	case err == nil:
		authority, _, err := claimabletokens.GetAuthority(mint)
		if err != nil {
			return nil, errors.Wrap(purchase.ErrInvalidInstructionInput, err.Error())
		}
		if !bytes.Equal(account.Owner, authority) {
			return nil, errors.Wrapf(purchase.ErrInvalidInstructionInput, "user bank %s has an unexpected owner", key)
		}
		s.existing.Insert(key, struct{}{}, 1)
		return address, nil
	case errors.Is(err, token.ErrAccountNotFound):
	case errors.Is(err, token.ErrInvalidTokenAccount):
		return nil, errors.Wrapf(purchase.ErrInvalidInstructionInput, "%s is not a user bank for this mint", key)
	default:
		return nil, errors.Wrap(purchase.ErrNetworkFailure, err.Error())
	}

	if err := s.create(ctx, ethWallet, mint); err != nil {
		log.WithError(err).Warn("failed to create user bank")
		return nil, err
	}

	log.Info("created user bank")
	s.existing.Insert(key, struct{}{}, 1)
	return address, nil
}

func (s *Service) create(ctx context.Context, ethWallet common.Address, mint ed25519.PublicKey) error {
	if s.relay == nil {
		return errors.Wrap(purchase.ErrRelayFailure, "relay is not configured")
	}

	feePayer, err := s.relay.GetFeePayer(ctx)
	if err != nil {
		return errors.Wrap(purchase.ErrRelayFailure, err.Error())
	}

	instruction, err := claimabletokens.CreateTokenAccount(feePayer, mint, ethWallet)
	if err != nil {
		return errors.Wrap(purchase.ErrInvalidInstructionInput, err.Error())
	}

	blockhash, err := s.data.GetBlockchainLatestBlockhash(ctx)
	if err != nil {
		return errors.Wrap(purchase.ErrNetworkFailure, err.Error())
	}

	txn := solana.NewTransaction(feePayer, instruction)
	txn.SetBlockhash(blockhash)

	if _, err := s.relay.Send(ctx, txn); err != nil {
		if solana.IsBlockhashNotFound(err) {
			return errors.Wrap(purchase.ErrStaleCheckpoint, err.Error())
		}
		return errors.Wrap(purchase.ErrRelayFailure, err.Error())
	}
	return nil
}

func validateTransferArgs(args *purchase.TransferArgs) error {
	switch {
	case args == nil:
		return errors.Wrap(purchase.ErrInvalidInstructionInput, "transfer args are required")
	case len(args.Mint) != ed25519.PublicKeySize:
		return errors.Wrap(purchase.ErrInvalidInstructionInput, "invalid mint")
	case len(args.Destination) != ed25519.PublicKeySize:
		return errors.Wrap(purchase.ErrInvalidInstructionInput, "invalid destination")
	case len(args.FeePayer) != ed25519.PublicKeySize:
		return errors.Wrap(purchase.ErrInvalidInstructionInput, "invalid fee payer")
	case args.Amount == 0:
		return errors.Wrap(purchase.ErrInvalidInstructionInput, "transfer amount is zero")
	}
	return nil
}
