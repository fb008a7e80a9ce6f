// Package shortvec implements the compact-u16 length prefix used in Solana
// wire formats: seven bits per byte, least significant group first, with the
// high bit set on every byte but the last.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedLen = 3

var (
	ErrLenTooLarge  = errors.Errorf("len exceeds %d", math.MaxUint16)
	ErrNonCanonical = errors.New("non-canonical shortvec encoding")
)

// EncodeLen writes n to w, returning the number of bytes written.
func EncodeLen(w io.ByteWriter, n int) (int, error) {
	if n < 0 || n > math.MaxUint16 {
		return 0, ErrLenTooLarge
	}

	var written int
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}

		if err := w.WriteByte(b); err != nil {
			return written, err
		}
		written++

		if n == 0 {
			return written, nil
		}
	}
}

// DecodeLen reads a length from r. Encodings longer than needed, or that
// overflow a u16, are rejected.
func DecodeLen(r io.ByteReader) (int, error) {
	var n int
	for i := 0; i < maxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		n |= int(b&0x7f) << (7 * i)
		if b&0x80 != 0 {
			continue
		}

		if i > 0 && b == 0 {
			return 0, ErrNonCanonical
		}
		if n > math.MaxUint16 {
			return 0, ErrLenTooLarge
		}
		return n, nil
	}
	return 0, ErrLenTooLarge
}
