package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var ErrTransactionTooLarge = errors.New("transaction exceeds max size")

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into a legacy transaction, with
// payer as the fee payer and first signer.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	accounts := compileAccounts(payer, instructions)

	var m Message
	for _, account := range accounts {
		m.Accounts = append(m.Accounts, account.PublicKey)

		if account.IsSigner {
			m.Header.NumSignatures++

			if !account.IsWritable {
				m.Header.NumReadonlySigned++
			}
		} else if !account.IsWritable {
			m.Header.NumReadOnly++
		}
	}

	for _, i := range instructions {
		c := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, i.Program)),
			Data:         i.Data,
		}

		for _, a := range i.Accounts {
			c.Accounts = append(c.Accounts, byte(indexOf(m.Accounts, a.PublicKey)))
		}

		m.Instructions = append(m.Instructions, c)
	}

	for i := range m.Accounts {
		if len(m.Accounts[i]) == 0 {
			m.Accounts[i] = make([]byte, ed25519.PublicKeySize)
		}
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// FeePayer returns the account paying for the transaction.
func (t *Transaction) FeePayer() ed25519.PublicKey {
	if len(t.Message.Accounts) == 0 {
		return nil
	}
	return t.Message.Accounts[0]
}

// Signature returns the first signature, which identifies the transaction.
func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

// Size is the length of the wire encoding of the transaction.
func (t *Transaction) Size() int {
	return len(t.Marshal())
}

// CheckSize returns ErrTransactionTooLarge when the encoded transaction
// does not fit in a single packet.
func (t *Transaction) CheckSize() error {
	if size := t.Size(); size > MaxTransactionSize {
		return errors.Wrapf(ErrTransactionTooLarge, "%d bytes", size)
	}
	return nil
}

// ProgramAt returns the program invoked by the instruction at index.
func (m Message) ProgramAt(index int) (ed25519.PublicKey, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}
	return m.Accounts[m.Instructions[index].ProgramIndex], nil
}

// IsSigner reports whether the account at index must sign the message.
func (m Message) IsSigner(index int) bool {
	return index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at index is writable.
func (m Message) IsWritable(index int) bool {
	if index < int(m.Header.NumSignatures) {
		return index < int(m.Header.NumSignatures-m.Header.NumReadonlySigned)
	}
	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}

func (t *Transaction) String() string {
	var sb strings.Builder
	m := t.Message

	fmt.Fprintf(&sb, "Signatures:\n")
	for i, sig := range t.Signatures {
		fmt.Fprintf(&sb, "  %d: %s\n", i, sig)
	}
	fmt.Fprintf(&sb, "Message:\n  Header:\n")
	fmt.Fprintf(&sb, "    NumSignatures: %d\n", m.Header.NumSignatures)
	fmt.Fprintf(&sb, "    NumReadonlySigned: %d\n", m.Header.NumReadonlySigned)
	fmt.Fprintf(&sb, "    NumReadOnly: %d\n", m.Header.NumReadOnly)
	fmt.Fprintf(&sb, "  RecentBlockhash: %s\n  Accounts:\n", m.RecentBlockhash)
	for i, account := range m.Accounts {
		fmt.Fprintf(&sb, "    %d: %s\n", i, base58.Encode(account))
	}
	fmt.Fprintf(&sb, "  Instructions:\n")
	for i, c := range m.Instructions {
		fmt.Fprintf(&sb, "    %d: program=%d accounts=%v data=%x\n", i, c.ProgramIndex, c.Accounts, c.Data)
	}
	return sb.String()
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign adds a signature for each key. Nothing is signed unless every key
// belongs to a required signer of the message.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	indices := make([]int, len(signers))
	for i, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		index := indexOf(t.Message.Accounts, pub)
		switch {
		case index < 0:
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		case index >= len(t.Signatures):
			return errors.Errorf("signing account %s is not a required signer", base58.Encode(pub))
		}
		indices[i] = index
	}

	message := t.Message.Marshal()
	for i, signer := range signers {
		copy(t.Signatures[indices[i]][:], ed25519.Sign(signer, message))
	}
	return nil
}

func indexOf(accounts []ed25519.PublicKey, account ed25519.PublicKey) int {
	return slices.IndexFunc(accounts, func(a ed25519.PublicKey) bool {
		return bytes.Equal(a, account)
	})
}
