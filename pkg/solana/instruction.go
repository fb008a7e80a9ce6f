package solana

import (
	"bytes"
	"crypto/ed25519"
	"slices"
	"sort"

	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
	ErrMalformedInstruction = errors.New("malformed instruction")
)

// AccountMeta represents the account information required
// for building transactions.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta creates a new AccountMeta representing a writable
// account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

// rank orders accounts within a message: the fee payer, then signers, then
// writable accounts, with invoked programs last.
//
// Reference: https://docs.solana.com/developing/programming-model/transactions#account-addresses-format
func (a AccountMeta) rank() int {
	switch {
	case a.isPayer:
		return 0
	case a.IsSigner && a.IsWritable:
		return 1
	case a.IsSigner:
		return 2
	case a.IsWritable:
		return 3
	case !a.isProgram:
		return 4
	default:
		return 5
	}
}

// compileAccounts returns the deduplicated, ordered account list referenced
// by the instructions. Duplicate entries are merged with the union of their
// permissions.
func compileAccounts(payer ed25519.PublicKey, instructions []Instruction) []AccountMeta {
	all := []AccountMeta{{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true}}
	for _, i := range instructions {
		all = append(all, AccountMeta{PublicKey: i.Program, isProgram: true})
		all = append(all, i.Accounts...)
	}

	merged := make([]AccountMeta, 0, len(all))
	for _, a := range all {
		j := slices.IndexFunc(merged, func(m AccountMeta) bool {
			return bytes.Equal(m.PublicKey, a.PublicKey)
		})
		if j < 0 {
			merged = append(merged, a)
			continue
		}

		merged[j].IsSigner = merged[j].IsSigner || a.IsSigner
		merged[j].IsWritable = merged[j].IsWritable || a.IsWritable
		merged[j].isPayer = merged[j].isPayer || a.isPayer
		merged[j].isProgram = merged[j].isProgram || a.isProgram
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if ri, rj := merged[i].rank(), merged[j].rank(); ri != rj {
			return ri < rj
		}
		return bytes.Compare(merged[i].PublicKey, merged[j].PublicKey) < 0
	})
	return merged
}

// Instruction represents a transaction instruction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// Validate checks every key referenced by the instruction is a well formed
// public key.
func (i Instruction) Validate() error {
	if len(i.Program) != ed25519.PublicKeySize {
		return errors.Wrap(ErrMalformedInstruction, "program key is missing")
	}

	for idx, a := range i.Accounts {
		if len(a.PublicKey) != ed25519.PublicKeySize {
			return errors.Wrapf(ErrMalformedInstruction, "account %d key is missing", idx)
		}
	}

	return nil
}

// CompiledInstruction represents an instruction that has been compiled into a transaction.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
