package engcrypto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
)

const ScalarBytes = 32

// Scalar is an element of the ristretto255 scalar field, encoded as 32
// canonical little-endian bytes.
type Scalar struct {
	v ristretto255.Scalar
}

func ScalarFromUint64(x uint64) Scalar {
	var b [ScalarBytes]byte
	binary.LittleEndian.PutUint64(b[:8], x)
	var s Scalar
	// Any uint64 is far below the group order, so this never fails.
	_, _ = s.v.SetCanonicalBytes(b[:])
	return s
}

func ScalarFromBytesCanonical(b []byte) (Scalar, error) {
	if len(b) != ScalarBytes {
		return Scalar{}, fmt.Errorf("scalar: expected %d bytes, got %d", ScalarBytes, len(b))
	}
	var s Scalar
	if _, err := s.v.SetCanonicalBytes(b); err != nil {
		return Scalar{}, fmt.Errorf("scalar: non-canonical: %w", err)
	}
	return s, nil
}

func ScalarFromUniformBytes(b []byte) (Scalar, error) {
	if len(b) != 64 {
		return Scalar{}, fmt.Errorf("scalar: expected 64 uniform bytes, got %d", len(b))
	}
	var s Scalar
	s.v.FromUniformBytes(b)
	return s, nil
}

// RandomScalar samples a uniformly random non-zero scalar from r.
func RandomScalar(r io.Reader) (Scalar, error) {
	var buf [64]byte
	for i := 0; i < 8; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Scalar{}, fmt.Errorf("scalar: read entropy: %w", err)
		}
		s, err := ScalarFromUniformBytes(buf[:])
		if err != nil {
			return Scalar{}, err
		}
		if !s.IsZero() {
			return s, nil
		}
	}
	return Scalar{}, fmt.Errorf("scalar: entropy source keeps producing zero")
}

func (s Scalar) Bytes() []byte {
	return s.v.Bytes()
}

func (s Scalar) IsZero() bool {
	var z ristretto255.Scalar
	return s.v.Equal(&z) == 1
}

func (s Scalar) Equal(o Scalar) bool {
	return s.v.Equal(&o.v) == 1
}

func ScalarAdd(a, b Scalar) Scalar {
	var out Scalar
	out.v.Add(&a.v, &b.v)
	return out
}

func ScalarSub(a, b Scalar) Scalar {
	var out Scalar
	out.v.Subtract(&a.v, &b.v)
	return out
}

func ScalarMul(a, b Scalar) Scalar {
	var out Scalar
	out.v.Multiply(&a.v, &b.v)
	return out
}

