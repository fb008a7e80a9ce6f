package userbank

import (
	"context"
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/purchase"
	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/claimabletokens"
)

// getNonce returns the nonce the next transfer out of ethWallet's user bank
// must be signed with.
func (s *Service) getNonce(ctx context.Context, ethWallet common.Address, mint ed25519.PublicKey) (uint64, error) {
	address, err := claimabletokens.GetNonceAddress(mint, ethWallet)
	if err != nil {
		return 0, errors.Wrap(purchase.ErrInvalidInstructionInput, err.Error())
	}

	info, err := s.data.GetBlockchainAccountInfo(ctx, address, solana.CommitmentFinalized)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrap(purchase.ErrNetworkFailure, err.Error())
	}

	if len(info.Data) == 0 {
		return 0, nil
	}

	var account claimabletokens.NonceAccount
	if err := account.Unmarshal(info.Data); err != nil {
		return 0, errors.Wrap(purchase.ErrInvalidInstructionInput, "invalid nonce account")
	}
	return account.Nonce, nil
}

func verifySignature(ethWallet common.Address, signature, message []byte) error {
	if len(signature) != crypto.SignatureLength {
		return errors.Wrapf(purchase.ErrUnauthenticated, "invalid signature length %d", len(signature))
	}

	normalized := append([]byte(nil), signature...)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(message), normalized)
	if err != nil {
		return errors.Wrap(purchase.ErrUnauthenticated, err.Error())
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != ethWallet {
		return errors.Wrapf(purchase.ErrUnauthenticated, "signature recovers to %s", recovered.Hex())
	}
	return nil
}
