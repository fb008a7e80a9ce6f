package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana/shortvec"
)

// versionPrefixMask marks the first message byte of a versioned message.
const versionPrefixMask = 0x80

var ErrUnsupportedMessageVersion = errors.New("versioned messages not supported")

// Wire format of a legacy transaction:
//
//	compact-u16 signature count, then 64 bytes per signature
//	message:
//	  3 header bytes
//	  compact-u16 account count, then 32 bytes per account
//	  32 byte recent blockhash
//	  compact-u16 instruction count, then per instruction:
//	    program index, compact-u16 account indices, compact-u16 data

func (t Transaction) Marshal() []byte {
	var buf bytes.Buffer
	writeLen(&buf, len(t.Signatures))
	for _, sig := range t.Signatures {
		buf.Write(sig[:])
	}
	buf.Write(t.Message.Marshal())
	return buf.Bytes()
}

// ToBase64 is the encoding expected by relays and wallet bridges.
func (t Transaction) ToBase64() string {
	return base64.StdEncoding.EncodeToString(t.Marshal())
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := &wireReader{buf: bytes.NewReader(b)}

	t.Signatures = make([]Signature, r.len("signatures"))
	for i := range t.Signatures {
		r.full(t.Signatures[i][:], "signature")
	}
	if r.err != nil {
		return r.err
	}

	rest := make([]byte, r.buf.Len())
	r.full(rest, "message")
	if r.err != nil {
		return r.err
	}
	return t.Message.Unmarshal(rest)
}

func (m Message) Marshal() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	writeLen(&buf, len(m.Accounts))
	for _, account := range m.Accounts {
		buf.Write(account)
	}

	buf.Write(m.RecentBlockhash[:])

	writeLen(&buf, len(m.Instructions))
	for _, i := range m.Instructions {
		buf.WriteByte(i.ProgramIndex)
		writeLen(&buf, len(i.Accounts))
		buf.Write(i.Accounts)
		writeLen(&buf, len(i.Data))
		buf.Write(i.Data)
	}
	return buf.Bytes()
}

func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&versionPrefixMask != 0 {
		return ErrUnsupportedMessageVersion
	}

	r := &wireReader{buf: bytes.NewReader(b)}

	var header [3]byte
	r.full(header[:], "header")
	m.Header = Header{NumSignatures: header[0], NumReadonlySigned: header[1], NumReadOnly: header[2]}

	m.Accounts = make([]ed25519.PublicKey, r.len("accounts"))
	for i := range m.Accounts {
		m.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		r.full(m.Accounts[i], "account")
	}

	r.full(m.RecentBlockhash[:], "recent blockhash")

	m.Instructions = make([]CompiledInstruction, r.len("instructions"))
	for i := range m.Instructions {
		c := &m.Instructions[i]
		c.ProgramIndex = r.byte("program index")
		c.Accounts = make([]byte, r.len("instruction accounts"))
		r.full(c.Accounts, "instruction accounts")
		c.Data = make([]byte, r.len("instruction data"))
		r.full(c.Data, "instruction data")

		if r.err != nil {
			return errors.Wrapf(r.err, "instruction %d", i)
		}
		if err := m.checkIndices(c); err != nil {
			return errors.Wrapf(err, "instruction %d", i)
		}
	}
	return r.err
}

func (m *Message) checkIndices(c *CompiledInstruction) error {
	if int(c.ProgramIndex) >= len(m.Accounts) {
		return errors.Errorf("program index out of range: %d", c.ProgramIndex)
	}
	for _, index := range c.Accounts {
		if int(index) >= len(m.Accounts) {
			return errors.Errorf("account index out of range: %d", index)
		}
	}
	return nil
}

// writeLen drops lengths that overflow a compact-u16. Such a transaction is
// far over MaxTransactionSize, so CheckSize rejects it regardless.
func writeLen(buf *bytes.Buffer, n int) {
	_, _ = shortvec.EncodeLen(buf, n)
}

// wireReader reads message fields, keeping the first error.
type wireReader struct {
	buf *bytes.Reader
	err error
}

func (r *wireReader) len(field string) int {
	if r.err != nil {
		return 0
	}
	n, err := shortvec.DecodeLen(r.buf)
	if err != nil {
		r.err = errors.Wrapf(err, "failed to read %s length", field)
		return 0
	}
	return n
}

func (r *wireReader) byte(field string) byte {
	var b [1]byte
	r.full(b[:], field)
	return b[0]
}

func (r *wireReader) full(dst []byte, field string) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.buf, dst); err != nil {
		r.err = errors.Wrapf(err, "failed to read %s", field)
	}
}
