package curve

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
)

const (
	// PointSize is the encoded size of one control value.
	PointSize = 4
	// CurveSize is the encoded size of one curve.
	CurveSize = NumPoints * PointSize
	// BlobSize is the encoded size of the whole table.
	BlobSize = NumCurves * CurveSize
)

// MarshalBinary encodes the table as NumCurves*NumPoints little-endian float32 words.
func (t Table) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BlobSize)
	t.put(buf)
	return buf, nil
}

// UnmarshalBinary decodes a blob written by MarshalBinary. Values are not
// validated; use Valid.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data) != BlobSize {
		return fmt.Errorf("curve blob has %d bytes, expected %d", len(data), BlobSize)
	}
	for c := range t {
		for p := range t[c] {
			off := c*CurveSize + p*PointSize
			t[c][p] = math32.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		}
	}
	return nil
}

func (t Table) put(buf []byte) {
	for c := range t {
		for p, v := range t[c] {
			off := c*CurveSize + p*PointSize
			binary.LittleEndian.PutUint32(buf[off:], math32.Float32bits(v))
		}
	}
}

// blank reports whether data is fully erased flash.
func blank(data []byte) bool {
	for _, b := range data {
		if b != 0xFF {
			return false
		}
	}
	return true
}
