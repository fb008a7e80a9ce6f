package memo

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
)

// ProgramKey is the original memo program, which accepts arbitrary bytes.
//
// Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo
var ProgramKey = ed25519.PublicKey{5, 74, 83, 80, 248, 93, 200, 130, 214, 20, 165, 86, 114, 120, 138, 41, 109, 223, 30, 171, 171, 208, 166, 6, 120, 136, 73, 50, 244, 238, 246, 160}

// ProgramKeyV2 validates UTF-8 and requires every listed account to sign.
//
// MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr
var ProgramKeyV2 = ed25519.PublicKey{5, 74, 83, 90, 153, 41, 33, 6, 77, 36, 232, 113, 96, 218, 56, 124, 124, 53, 181, 221, 188, 146, 187, 129, 228, 31, 168, 64, 65, 5, 68, 141}

func Instruction(data string) solana.Instruction {
	return solana.NewInstruction(ProgramKey, []byte(data))
}

// InstructionV2 returns a v2 memo. The memo is only accepted if every signer
// signs the transaction.
func InstructionV2(data string, signers ...ed25519.PublicKey) solana.Instruction {
	accounts := make([]solana.AccountMeta, 0, len(signers))
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}
	return solana.NewInstruction(ProgramKeyV2, []byte(data), accounts...)
}

// IsMemoProgram reports whether program is either memo program.
func IsMemoProgram(program ed25519.PublicKey) bool {
	return bytes.Equal(program, ProgramKey) || bytes.Equal(program, ProgramKeyV2)
}

type DecompiledMemo struct {
	Data []byte

	// Signers required by a v2 memo
	Signers []ed25519.PublicKey
}

func DecompileMemo(m solana.Message, index int) (*DecompiledMemo, error) {
	program, err := m.ProgramAt(index)
	if err != nil {
		return nil, err
	}
	if !IsMemoProgram(program) {
		return nil, solana.ErrIncorrectProgram
	}

	compiled := m.Instructions[index]

	decompiled := &DecompiledMemo{Data: compiled.Data}
	for _, account := range compiled.Accounts {
		if !m.IsSigner(int(account)) {
			return nil, errors.Wrap(solana.ErrIncorrectInstruction, "memo account is not a signer")
		}
		decompiled.Signers = append(decompiled.Signers, m.Accounts[account])
	}
	return decompiled, nil
}
