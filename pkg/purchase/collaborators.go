package purchase

import (
	"context"
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"

	"github.com/code-payments/content-purchase/pkg/solana"
)

// ContentDirectory serves the gating, ownership and access state of content.
type ContentDirectory interface {
	// GetAccessInfo returns ErrContentNotFound when the content does not
	// exist.
	GetAccessInfo(ctx context.Context, contentId, buyerId string) (*ContentAccessInfo, error)
}

// SplitResolutionService resolves a payee's eth wallet to the user bank that
// receives their share, creating the user bank if it does not exist yet.
type SplitResolutionService interface {
	DeriveOrCreateAccount(ctx context.Context, ethWallet common.Address, mint ed25519.PublicKey) (ed25519.PublicKey, error)
}

// RelayService pays for, countersigns and broadcasts relay path transactions.
type RelayService interface {
	GetLocationInstruction(ctx context.Context) (solana.Instruction, error)
	GetFeePayer(ctx context.Context) (ed25519.PublicKey, error)
	Send(ctx context.Context, txn solana.Transaction) (solana.Signature, error)
}

// WalletAdapter is a wallet the buyer controls.
type WalletAdapter interface {
	// PublicKey is nil when the wallet is not connected.
	PublicKey() ed25519.PublicKey

	// SendTransaction signs txn and submits it through connection.
	SendTransaction(ctx context.Context, txn solana.Transaction, connection solana.Client) (solana.Signature, error)
}

// Authenticator is the buyer's eth identity, which controls their user bank.
type Authenticator interface {
	Address() common.Address

	// Sign returns a 65 byte [R || S || V] secp256k1 signature over
	// keccak256(payload).
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

type TransferArgs struct {
	EthWallet   common.Address
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Amount      uint64
	FeePayer    ed25519.PublicKey

	// InstructionIndex is the position of the recovery instruction in the
	// transaction.
	InstructionIndex uint8

	Signer Authenticator
}

// FundingAccountService moves funds out of a buyer's user bank.
type FundingAccountService interface {
	DeriveDelegatedAccount(ctx context.Context, ethWallet common.Address, mint ed25519.PublicKey) (ed25519.PublicKey, error)

	// CreateTransferSecpInstruction returns the instruction proving the
	// buyer authorized the transfer.
	CreateTransferSecpInstruction(ctx context.Context, args *TransferArgs) (solana.Instruction, error)

	CreateTransferInstruction(ctx context.Context, args *TransferArgs) (solana.Instruction, error)
}

// CheckpointProvider supplies the recent blockhash a transaction is bound
// to. solana.Client satisfies it.
type CheckpointProvider interface {
	GetLatestBlockhash() (solana.Blockhash, error)
}
