package query

import (
	"encoding/binary"
)

// Cursor is an opaque page position. Stores encode the last seen record id
// as 8 big endian bytes.
type Cursor []byte

var EmptyCursor = Cursor{}

func ToCursor(id uint64) Cursor {
	c := make(Cursor, 8)
	binary.BigEndian.PutUint64(c, id)
	return c
}

func (c Cursor) ToUint64() uint64 {
	return binary.BigEndian.Uint64(c)
}
