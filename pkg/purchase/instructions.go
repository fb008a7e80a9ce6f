package purchase

import (
	"crypto/ed25519"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/memo"
	"github.com/code-payments/content-purchase/pkg/solana/paymentrouter"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

// InstructionSet holds the instructions of a single purchase transaction.
// Recovery is only used by the relay path.
type InstructionSet struct {
	Recovery     *solana.Instruction
	Transfer     *solana.Instruction
	Route        *solana.Instruction
	PurchaseMemo *solana.Instruction
	LocationMemo *solana.Instruction
}

// Ordered returns the instructions in transaction order: the optional
// recovery, transfer, route, purchase memo and the optional location memo.
func (s *InstructionSet) Ordered() ([]solana.Instruction, error) {
	if s == nil {
		return nil, errors.Wrap(ErrInvalidInstructionInput, "instruction set is required")
	}

	switch {
	case s.Transfer == nil:
		return nil, errors.Wrap(ErrInvalidInstructionInput, "transfer instruction is required")
	case s.Route == nil:
		return nil, errors.Wrap(ErrInvalidInstructionInput, "route instruction is required")
	case s.PurchaseMemo == nil:
		return nil, errors.Wrap(ErrInvalidInstructionInput, "purchase memo instruction is required")
	}

	var ordered []solana.Instruction
	for _, ixn := range []*solana.Instruction{
		s.Recovery,
		s.Transfer,
		s.Route,
		s.PurchaseMemo,
		s.LocationMemo,
	} {
		if ixn != nil {
			ordered = append(ordered, *ixn)
		}
	}

	return ordered, nil
}

// InstructionFactory builds purchase instructions for a single mint. It
// performs no I/O.
type InstructionFactory struct {
	mint     ed25519.PublicKey
	decimals uint8
}

func NewInstructionFactory(mint ed25519.PublicKey, decimals uint8) *InstructionFactory {
	return &InstructionFactory{
		mint:     mint,
		decimals: decimals,
	}
}

func (f *InstructionFactory) Mint() ed25519.PublicKey {
	return f.mint
}

// ProgramTokenAccount is the payment router account every purchase is
// funded into before being routed to payees.
func (f *InstructionFactory) ProgramTokenAccount() (ed25519.PublicKey, error) {
	if err := f.validateMint(); err != nil {
		return nil, err
	}

	account, err := paymentrouter.GetProgramTokenAccount(f.mint)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}
	return account, nil
}

// MakeRouteInstruction distributes total from the program token account to
// each prepared split.
func (f *InstructionFactory) MakeRouteInstruction(splits *PreparedSplits, total uint64) (solana.Instruction, error) {
	if err := f.validateMint(); err != nil {
		return solana.Instruction{}, err
	}
	if splits == nil || len(splits.Splits) == 0 {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionInput, "no splits to route")
	}

	destinations := splits.Destinations()
	for i, destination := range destinations {
		if len(destination) != ed25519.PublicKeySize {
			return solana.Instruction{}, errors.Wrapf(ErrInvalidInstructionInput, "split %d has no destination", i)
		}
	}

	amounts := splits.RouteAmounts()

	var sum uint64
	for _, amount := range amounts {
		var carry uint64
		sum, carry = bits.Add64(sum, amount, 0)
		if carry != 0 {
			return solana.Instruction{}, errors.Wrap(ErrSplitMismatch, "route amounts overflow")
		}
	}
	if sum != total || splits.Total != total {
		return solana.Instruction{}, errors.Wrapf(ErrSplitMismatch, "routing %d of declared total %d", sum, total)
	}

	owner, bump, err := paymentrouter.GetRouterAddress()
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "failed to derive router address")
	}

	sender, err := f.ProgramTokenAccount()
	if err != nil {
		return solana.Instruction{}, err
	}

	ixn, err := paymentrouter.NewRouteInstruction(
		&paymentrouter.RouteInstructionAccounts{
			Sender:      sender,
			SenderOwner: owner,
			Recipients:  destinations,
		},
		&paymentrouter.RouteInstructionArgs{
			SenderOwnerBump: bump,
			Amounts:         amounts,
			Total:           total,
		},
	)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}
	return ixn, nil
}

// MakePurchaseMemoInstruction annotates the transaction with the purchased
// content and the block it was priced at.
func (f *InstructionFactory) MakePurchaseMemoInstruction(m paymentrouter.PurchaseMemo) (solana.Instruction, error) {
	if err := m.Validate(); err != nil {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}

	return memo.InstructionV2(m.String()), nil
}

// MakeWalletTransferInstruction moves total from the wallet's associated
// token account into the program token account.
func (f *InstructionFactory) MakeWalletTransferInstruction(wallet ed25519.PublicKey, total uint64) (solana.Instruction, error) {
	if len(wallet) != ed25519.PublicKeySize {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionInput, "wallet is required")
	}
	if total == 0 {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionInput, "transfer amount is zero")
	}

	destination, err := f.ProgramTokenAccount()
	if err != nil {
		return solana.Instruction{}, err
	}

	source, err := token.GetAssociatedAccount(wallet, f.mint)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}

	return token.TransferChecked(source, f.mint, destination, wallet, total, f.decimals), nil
}

func (f *InstructionFactory) validateMint() error {
	if len(f.mint) != ed25519.PublicKeySize {
		return errors.Wrap(ErrInvalidInstructionInput, "mint is required")
	}
	return nil
}
