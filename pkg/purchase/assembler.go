package purchase

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
)

// Assemble compiles the instruction set, in order, into an unsigned
// transaction paid for by feePayer and bound to checkpoint.
//
// An expired checkpoint is only detected when the transaction is submitted.
func Assemble(set *InstructionSet, feePayer ed25519.PublicKey, checkpoint solana.Blockhash) (solana.Transaction, error) {
	if len(feePayer) != ed25519.PublicKeySize {
		return solana.Transaction{}, errors.Wrap(ErrInvalidInstructionInput, "fee payer is required")
	}
	if checkpoint == (solana.Blockhash{}) {
		return solana.Transaction{}, errors.Wrap(ErrInvalidInstructionInput, "checkpoint is required")
	}

	instructions, err := set.Ordered()
	if err != nil {
		return solana.Transaction{}, err
	}

	for i, ixn := range instructions {
		if err := ixn.Validate(); err != nil {
			return solana.Transaction{}, errors.Wrapf(ErrInvalidInstructionInput, "instruction %d: %v", i, err)
		}
	}

	txn := solana.NewTransaction(feePayer, instructions...)
	txn.SetBlockhash(checkpoint)

	if err := txn.CheckSize(); err != nil {
		return solana.Transaction{}, errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}

	return txn, nil
}
