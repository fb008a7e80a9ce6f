package claimabletokens

import (
	"github.com/code-payments/content-purchase/pkg/solana/binary"
)

const NonceAccountSize = 1 + 8

// NonceAccount is the state of a nonce account. An account that does not
// exist yet is equivalent to a nonce of zero.
type NonceAccount struct {
	Version uint8
	Nonce   uint64
}

func (a *NonceAccount) Unmarshal(b []byte) error {
	if len(b) < NonceAccountSize {
		return ErrInvalidAccountData
	}

	d := binary.NewDecoder(b)
	a.Version = d.Uint8()
	a.Nonce = d.Uint64()
	return d.Err()
}

func (a *NonceAccount) Marshal() []byte {
	return binary.NewEncoder(NonceAccountSize).
		Uint8(a.Version).
		Uint64(a.Nonce).
		Bytes()
}
