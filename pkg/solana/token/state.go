package token

import (
	"crypto/ed25519"

	"github.com/code-payments/content-purchase/pkg/solana/binary"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// AccountSize is the size of an SPL token account
const AccountSize = 165

// Account is the state of an SPL token account, such as a buyer's USDC
// associated account or a user bank
type Account struct {
	Mint   ed25519.PublicKey
	Owner  ed25519.PublicKey
	Amount uint64

	// DelegatedAmount is only meaningful when Delegate is set
	Delegate        ed25519.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  ed25519.PublicKey
}

func (a *Account) Marshal() []byte {
	return binary.NewEncoder(AccountSize).
		Key(a.Mint).
		Key(a.Owner).
		Uint64(a.Amount).
		OptionalKey(a.Delegate).
		Uint8(uint8(a.State)).
		OptionalUint64(a.IsNative).
		Uint64(a.DelegatedAmount).
		OptionalKey(a.CloseAuthority).
		Bytes()
}

// Unmarshal reports false when b is not exactly AccountSize bytes
func (a *Account) Unmarshal(b []byte) bool {
	if len(b) != AccountSize {
		return false
	}

	d := binary.NewDecoder(b)
	a.Mint = d.Key()
	a.Owner = d.Key()
	a.Amount = d.Uint64()
	a.Delegate = d.OptionalKey()
	a.State = AccountState(d.Uint8())
	a.IsNative = d.OptionalUint64()
	a.DelegatedAmount = d.Uint64()
	a.CloseAuthority = d.OptionalKey()

	return d.Err() == nil
}
