package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/binary"
)

// ProgramKey is the SPL token program.
//
// TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type Command byte

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs
const (
	CommandTransfer        Command = 3
	CommandTransferChecked Command = 12
)

const transferCheckedDataSize = 1 + 8 + 1

// TransferChecked moves amount from source to dest. The token program
// rejects the transfer unless mint and decimals match the source account.
//
//	0. `[writable]` The source account.
//	1. `[]` The token mint.
//	2. `[writable]` The destination account.
//	3. `[signer]` The source account's owner.
func TransferChecked(source, mint, dest, owner ed25519.PublicKey, amount uint64, decimals byte) solana.Instruction {
	data := binary.NewEncoder(transferCheckedDataSize).
		Uint8(uint8(CommandTransferChecked)).
		Uint64(amount).
		Uint8(decimals).
		Bytes()

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransferChecked struct {
	Source      ed25519.PublicKey
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
	Decimals    byte
}

func DecompileTransferChecked(m solana.Message, index int) (*DecompiledTransferChecked, error) {
	program, err := m.ProgramAt(index)
	if err != nil {
		return nil, err
	}
	if !program.Equal(ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	i := m.Instructions[index]

	d := binary.NewDecoder(i.Data)
	if Command(d.Uint8()) != CommandTransferChecked {
		return nil, solana.ErrIncorrectInstruction
	}
	amount := d.Uint64()
	decimals := d.Uint8()
	if d.Err() != nil || d.Remaining() != 0 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}
	if len(i.Accounts) != 4 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return &DecompiledTransferChecked{
		Source:      m.Accounts[i.Accounts[0]],
		Mint:        m.Accounts[i.Accounts[1]],
		Destination: m.Accounts[i.Accounts[2]],
		Owner:       m.Accounts[i.Accounts[3]],
		Amount:      amount,
		Decimals:    decimals,
	}, nil
}
