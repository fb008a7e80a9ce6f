package paymentrouter

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/binary"
)

var routeInstructionDiscriminator = []byte{
	229, 23, 203, 151, 122, 227, 173, 42,
}

const (
	// Fixed accounts, recipients follow as remaining accounts
	routeInstructionFixedAccounts = 3
)

func RouteInstructionArgsSize(recipients int) int {
	return 1 + // sender_owner_bump
		binary.VecUint64Size(recipients) + // amounts
		8 // total_amount
}

type RouteInstructionArgs struct {
	SenderOwnerBump uint8
	Amounts         []uint64
	Total           uint64
}

type RouteInstructionAccounts struct {
	Sender      ed25519.PublicKey
	SenderOwner ed25519.PublicKey
	Recipients  []ed25519.PublicKey
}

// NewRouteInstruction distributes Total from the router's token account to
// each recipient. The program rejects the instruction when the amounts do not
// sum to Total, so callers validate that before building it.
func NewRouteInstruction(
	accounts *RouteInstructionAccounts,
	args *RouteInstructionArgs,
) (solana.Instruction, error) {
	if len(accounts.Recipients) != len(args.Amounts) {
		return solana.Instruction{}, errors.Errorf("%d recipients for %d amounts", len(accounts.Recipients), len(args.Amounts))
	}

	data := binary.NewEncoder(len(routeInstructionDiscriminator) + RouteInstructionArgsSize(len(args.Amounts))).
		Raw(routeInstructionDiscriminator).
		Uint8(args.SenderOwnerBump).
		VecUint64(args.Amounts).
		Uint64(args.Total).
		Bytes()

	instructionAccounts := []solana.AccountMeta{
		solana.NewAccountMeta(accounts.Sender, false),
		solana.NewReadonlyAccountMeta(accounts.SenderOwner, false),
		solana.NewReadonlyAccountMeta(SPL_TOKEN_PROGRAM_ID, false),
	}
	for _, recipient := range accounts.Recipients {
		instructionAccounts = append(instructionAccounts, solana.NewAccountMeta(recipient, false))
	}

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		instructionAccounts...,
	), nil
}

// RouteInstructionFromBinary decodes the instruction arguments of a route
// instruction.
func RouteInstructionFromBinary(data []byte) (*RouteInstructionArgs, error) {
	d := binary.NewDecoder(data)
	if !bytes.Equal(d.Raw(len(routeInstructionDiscriminator)), routeInstructionDiscriminator) {
		return nil, ErrInvalidInstructionData
	}

	args := &RouteInstructionArgs{
		SenderOwnerBump: d.Uint8(),
		Amounts:         d.VecUint64(),
		Total:           d.Uint64(),
	}
	if d.Err() != nil || d.Remaining() != 0 {
		return nil, ErrInvalidInstructionData
	}
	return args, nil
}

// DecompileRouteInstruction decodes the route instruction at index in m.
func DecompileRouteInstruction(m solana.Message, index int) (*RouteInstructionArgs, *RouteInstructionAccounts, error) {
	if index >= len(m.Instructions) {
		return nil, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], PROGRAM_ID) {
		return nil, nil, ErrInvalidProgram
	}

	args, err := RouteInstructionFromBinary(i.Data)
	if err != nil {
		return nil, nil, err
	}

	if len(i.Accounts) != routeInstructionFixedAccounts+len(args.Amounts) {
		return nil, nil, errors.Wrapf(ErrInvalidInstructionData, "invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(m.Accounts[i.Accounts[2]], SPL_TOKEN_PROGRAM_ID) {
		return nil, nil, errors.Wrap(ErrInvalidInstructionData, "invalid token program")
	}

	accounts := &RouteInstructionAccounts{
		Sender:      m.Accounts[i.Accounts[0]],
		SenderOwner: m.Accounts[i.Accounts[1]],
	}
	for _, idx := range i.Accounts[routeInstructionFixedAccounts:] {
		accounts.Recipients = append(accounts.Recipients, m.Accounts[idx])
	}

	return args, accounts, nil
}
