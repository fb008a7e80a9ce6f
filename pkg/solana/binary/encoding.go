// Package binary reads and writes the little endian, borsh style layouts
// used by on-chain account state and instruction data.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned by a Decoder that ran out of input
var ErrShortBuffer = errors.New("binary: buffer too short")

// OptionTagSize is the tag width of a C style Option as laid out by the SPL
// token program
const OptionTagSize = 4

const keySize = ed25519.PublicKeySize

// VecUint64Size is the encoded size of a Vec<u64> with n elements
func VecUint64Size(n int) int {
	return 4 + 8*n
}

// Encoder appends fields to a growing buffer
type Encoder struct {
	buf []byte
}

func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Raw appends b without a length prefix
func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

func (e *Encoder) Uint8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

func (e *Encoder) Uint64(v uint64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	return e
}

// Key appends a 32 byte public key, zero filled when k is empty
func (e *Encoder) Key(k ed25519.PublicKey) *Encoder {
	var fixed [keySize]byte
	copy(fixed[:], k)
	return e.Raw(fixed[:])
}

// OptionalKey appends a C style Option<Pubkey>
func (e *Encoder) OptionalKey(k ed25519.PublicKey) *Encoder {
	e.optionTag(len(k) > 0)
	return e.Key(k)
}

// OptionalUint64 appends a C style Option<u64>
func (e *Encoder) OptionalUint64(v *uint64) *Encoder {
	e.optionTag(v != nil)
	if v == nil {
		return e.Uint64(0)
	}
	return e.Uint64(*v)
}

// VecUint64 appends a borsh Vec<u64>: a u32 count followed by the values
func (e *Encoder) VecUint64(values []uint64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(values)))
	for _, v := range values {
		e.Uint64(v)
	}
	return e
}

func (e *Encoder) optionTag(set bool) {
	var tag [OptionTagSize]byte
	if set {
		tag[0] = 1
	}
	e.Raw(tag[:])
}

// Decoder consumes fields from the front of a buffer. The first short read
// sticks: later reads return zero values and Err reports ErrShortBuffer.
type Decoder struct {
	buf []byte
	err error
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) Err() error {
	return d.err
}

// Remaining is the number of unread bytes
func (d *Decoder) Remaining() int {
	return len(d.buf)
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf) < n {
		d.err = ErrShortBuffer
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

// Raw returns a copy of the next n bytes
func (d *Decoder) Raw(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (d *Decoder) Uint8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *Decoder) Uint32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *Decoder) Uint64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *Decoder) Key() ed25519.PublicKey {
	return d.Raw(keySize)
}

// OptionalKey reads a C style Option<Pubkey>, returning nil when unset
func (d *Decoder) OptionalKey() ed25519.PublicKey {
	set := d.optionTag()
	key := d.Key()
	if !set {
		return nil
	}
	return key
}

// OptionalUint64 reads a C style Option<u64>, returning nil when unset
func (d *Decoder) OptionalUint64() *uint64 {
	set := d.optionTag()
	v := d.Uint64()
	if !set || d.err != nil {
		return nil
	}
	return &v
}

// VecUint64 reads a borsh Vec<u64>
func (d *Decoder) VecUint64() []uint64 {
	n := int(d.Uint32())
	if d.err != nil {
		return nil
	}
	if len(d.buf) < 8*n {
		d.err = ErrShortBuffer
		return nil
	}

	values := make([]uint64, n)
	for i := range values {
		values[i] = d.Uint64()
	}
	return values
}

func (d *Decoder) optionTag() bool {
	tag := d.take(OptionTagSize)
	return tag != nil && tag[0] == 1
}
