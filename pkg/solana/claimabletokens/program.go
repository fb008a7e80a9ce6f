package claimabletokens

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// ProgramKey is the address of the claimable tokens (user bank) program.
//
// Current key: Ewkv3JahEFRKkcJmpoKB7pXbnUHwjAyXiwEo4ZY2rezQ
var ProgramKey = ed25519.PublicKey{207, 46, 242, 175, 136, 87, 207, 13, 192, 158, 214, 70, 237, 159, 230, 8, 162, 181, 44, 55, 55, 12, 40, 239, 136, 220, 73, 82, 188, 98, 7, 205}

type Command byte

const (
	CommandCreateTokenAccount Command = iota
	CommandTransfer
)

var (
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
	ErrInvalidAccountData     = errors.New("unexpected account data")
)
