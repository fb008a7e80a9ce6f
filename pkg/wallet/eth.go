package wallet

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// EthAuthenticator signs on behalf of an eth identity held as a local
// secp256k1 key.
type EthAuthenticator struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewEthAuthenticator(key *ecdsa.PrivateKey) *EthAuthenticator {
	return &EthAuthenticator{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewEthAuthenticatorFromHex loads a key from its hex encoding, with or
// without a 0x prefix.
func NewEthAuthenticatorFromHex(encoded string) (*EthAuthenticator, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid secp256k1 private key")
	}
	return NewEthAuthenticator(key), nil
}

func (a *EthAuthenticator) Address() common.Address {
	return a.address
}

// Sign returns a [R || S || V] signature over keccak256(payload), with V in
// {0, 1}.
func (a *EthAuthenticator) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(crypto.Keccak256(payload), a.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign payload")
	}
	return sig, nil
}
