package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
)

var (
	// SystemAccount is the system program, which owns every wallet account.
	SystemAccount = mustDecode("11111111111111111111111111111111")

	// RentSysVar holds the cluster's rent parameters.
	RentSysVar = mustDecode("SysvarRent111111111111111111111111111111111")

	// InstructionsSysVar exposes the serialized instructions of the current
	// transaction, which lets a program verify the secp256k1 instruction
	// preceding it.
	InstructionsSysVar = mustDecode("Sysvar1nstructions1111111111111111111111111")
)

func mustDecode(address string) ed25519.PublicKey {
	key, err := base58.Decode(address)
	if err != nil || len(key) != ed25519.PublicKeySize {
		panic("invalid system address: " + address)
	}
	return key
}
