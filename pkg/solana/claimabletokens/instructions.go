package claimabletokens

import (
	"bytes"
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/binary"
	"github.com/code-payments/content-purchase/pkg/solana/system"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

const (
	instructionSize = 1 + common.AddressLength

	// TransferMessageSize is the size of the borsh encoded payload the eth
	// key signs for a transfer.
	TransferMessageSize = 32 + 8 + 8
)

// CreateTokenAccount creates the user bank of ethAddress.
//
// Reference: https://github.com/AudiusProject/audius-protocol/blob/main/solana-programs/claimable-tokens/program/src/instruction.rs
func CreateTokenAccount(payer, mint ed25519.PublicKey, ethAddress common.Address) (solana.Instruction, error) {
	authority, _, err := GetAuthority(mint)
	if err != nil {
		return solana.Instruction{}, err
	}

	userBank, err := GetUserBankAddress(mint, ethAddress)
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(
		ProgramKey,
		commandData(CommandCreateTokenAccount, ethAddress),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewAccountMeta(userBank, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
	), nil
}

type TransferArgs struct {
	Payer       ed25519.PublicKey
	Mint        ed25519.PublicKey
	EthAddress  common.Address
	Destination ed25519.PublicKey
}

// Transfer moves funds out of the user bank of args.EthAddress. It must be
// preceded by a secp256k1 instruction carrying the eth signature over the
// TransferMessage.
func Transfer(args *TransferArgs) (solana.Instruction, error) {
	if len(args.Payer) != ed25519.PublicKeySize || len(args.Destination) != ed25519.PublicKeySize {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionData, "payer and destination are required")
	}

	authority, _, err := GetAuthority(args.Mint)
	if err != nil {
		return solana.Instruction{}, err
	}

	userBank, err := GetUserBankAddress(args.Mint, args.EthAddress)
	if err != nil {
		return solana.Instruction{}, err
	}

	nonce, err := GetNonceAddress(args.Mint, args.EthAddress)
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(
		ProgramKey,
		commandData(CommandTransfer, args.EthAddress),
		solana.NewAccountMeta(args.Payer, true),
		solana.NewAccountMeta(userBank, false),
		solana.NewAccountMeta(args.Destination, false),
		solana.NewAccountMeta(nonce, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(system.InstructionsSysVar, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	), nil
}

// TransferMessage is the payload an eth key signs to authorize a transfer
// out of its user bank.
type TransferMessage struct {
	Destination ed25519.PublicKey
	Amount      uint64
	Nonce       uint64
}

func (m TransferMessage) Marshal() []byte {
	return binary.NewEncoder(TransferMessageSize).
		Key(m.Destination).
		Uint64(m.Amount).
		Uint64(m.Nonce).
		Bytes()
}

func (m *TransferMessage) Unmarshal(b []byte) error {
	if len(b) != TransferMessageSize {
		return errors.Wrapf(ErrInvalidInstructionData, "invalid transfer message size: %d", len(b))
	}

	d := binary.NewDecoder(b)
	m.Destination = d.Key()
	m.Amount = d.Uint64()
	m.Nonce = d.Uint64()
	return d.Err()
}

type DecompiledTransfer struct {
	Payer       ed25519.PublicKey
	UserBank    ed25519.PublicKey
	Destination ed25519.PublicKey
	Nonce       ed25519.PublicKey
	Authority   ed25519.PublicKey
	EthAddress  common.Address
}

// DecompileTransfer decodes the user bank transfer at index in m.
func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) != instructionSize || Command(i.Data[0]) != CommandTransfer {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 9 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	decompiled := &DecompiledTransfer{
		Payer:       m.Accounts[i.Accounts[0]],
		UserBank:    m.Accounts[i.Accounts[1]],
		Destination: m.Accounts[i.Accounts[2]],
		Nonce:       m.Accounts[i.Accounts[3]],
		Authority:   m.Accounts[i.Accounts[4]],
	}
	copy(decompiled.EthAddress[:], i.Data[1:])

	return decompiled, nil
}

func commandData(command Command, ethAddress common.Address) []byte {
	data := make([]byte, instructionSize)
	data[0] = byte(command)
	copy(data[1:], ethAddress.Bytes())
	return data
}
