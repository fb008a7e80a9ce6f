package claimabletokens

import (
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

var (
	nonceSeedPrefix = []byte("N_")
)

// GetAuthority returns the PDA that owns every user bank for mint.
func GetAuthority(mint ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, mint)
}

// GetUserBankAddress returns the token account holding funds claimable by
// ethAddress.
func GetUserBankAddress(mint ed25519.PublicKey, ethAddress common.Address) (ed25519.PublicKey, error) {
	authority, _, err := GetAuthority(mint)
	if err != nil {
		return nil, err
	}

	return solana.CreateWithSeed(authority, base58.Encode(ethAddress.Bytes()), token.ProgramKey)
}

// GetNonceAddress returns the account tracking the transfer nonce of
// ethAddress, which protects signed transfers from being replayed.
func GetNonceAddress(mint ed25519.PublicKey, ethAddress common.Address) (ed25519.PublicKey, error) {
	authority, _, err := GetAuthority(mint)
	if err != nil {
		return nil, err
	}

	seed := append(append([]byte{}, nonceSeedPrefix...), ethAddress.Bytes()...)
	return solana.CreateWithSeed(authority, base58.Encode(seed), ProgramKey)
}
