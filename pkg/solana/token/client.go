package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
)

var (
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidTokenAccount indicates the address holds an account that is
	// not an initialized token account for the client's mint.
	ErrInvalidTokenAccount = errors.New("invalid token account")
)

// Client reads token accounts of a single mint.
type Client struct {
	sc   solana.Client
	mint ed25519.PublicKey
}

func NewClient(sc solana.Client, mint ed25519.PublicKey) *Client {
	return &Client{sc: sc, mint: mint}
}

func (c *Client) Mint() ed25519.PublicKey {
	return c.mint
}

func (c *Client) GetAccount(address ed25519.PublicKey, commitment solana.Commitment) (*Account, error) {
	info, err := c.sc.GetAccountInfo(address, commitment)
	switch {
	case errors.Is(err, solana.ErrNoAccountInfo):
		return nil, ErrAccountNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed to get account info")
	case !info.Owner.Equal(ProgramKey):
		return nil, ErrInvalidTokenAccount
	}

	var account Account
	if !account.Unmarshal(info.Data) || account.State == AccountStateUninitialized || !account.Mint.Equal(c.mint) {
		return nil, ErrInvalidTokenAccount
	}
	return &account, nil
}
