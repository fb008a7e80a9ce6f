package paymentrouter

import (
	"crypto/ed25519"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

var (
	paymentRouterPrefix = []byte("payment_router")
)

// GetRouterAddress returns the PDA that owns the router's token accounts,
// along with its bump seed.
func GetRouterAddress() (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		paymentRouterPrefix,
	)
}

// GetProgramTokenAccount returns the router's associated token account for
// mint. Purchases fund this account and the route instruction drains it.
func GetProgramTokenAccount(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	owner, _, err := GetRouterAddress()
	if err != nil {
		return nil, err
	}

	return token.GetAssociatedAccount(owner, mint)
}
