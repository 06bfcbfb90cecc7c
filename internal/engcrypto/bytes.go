package engcrypto

import (
	"encoding/binary"
	"fmt"
)

func u32le(x uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, x)
	return b
}

func u64le(x uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return b
}

func concatBytes(chunks ...[]byte) []byte {
	var n int
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Reader consumes fixed-size fields from an encoded proof.
type Reader struct {
	bytes []byte
	off   int
}

func NewReader(b []byte) *Reader {
	return &Reader{bytes: b}
}

func (r *Reader) Take(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("reader: invalid length %d", n)
	}
	if r.off+n > len(r.bytes) {
		return nil, fmt.Errorf("reader: out of bounds")
	}
	out := r.bytes[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *Reader) TakeU16LE() (uint16, error) {
	b, err := r.Take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) TakePoint() (Point, error) {
	b, err := r.Take(PointBytes)
	if err != nil {
		return Point{}, err
	}
	return PointFromBytesCanonical(b)
}

func (r *Reader) TakeScalar() (Scalar, error) {
	b, err := r.Take(ScalarBytes)
	if err != nil {
		return Scalar{}, err
	}
	return ScalarFromBytesCanonical(b)
}

func (r *Reader) Done() bool {
	return r.off == len(r.bytes)
}
