package engcrypto

import (
	"fmt"
	"io"
	"math"
)

// MaxDecodeBound caps the plaintext space a Decoder can search.
const MaxDecodeBound = uint64(1) << 40

// Decoder recovers m from m*G for m in [0, bound) with baby-step/giant-step.
// The table is built once; Decode is safe for concurrent use.
type Decoder struct {
	bound uint64
	m     uint64
	baby  map[[PointBytes]byte]uint64
	giant Point
}

func NewDecoder(bound uint64) (*Decoder, error) {
	if bound == 0 || bound > MaxDecodeBound {
		return nil, fmt.Errorf("decoder: bound must be in [1, %d]", MaxDecodeBound)
	}
	m := uint64(math.Sqrt(float64(bound)))
	for m*m < bound {
		m++
	}

	baby := make(map[[PointBytes]byte]uint64, m)
	cur := PointZero()
	g := PointBase()
	for j := uint64(0); j < m; j++ {
		var key [PointBytes]byte
		copy(key[:], cur.Bytes())
		baby[key] = j
		cur = PointAdd(cur, g)
	}
	return &Decoder{
		bound: bound,
		m:     m,
		baby:  baby,
		giant: MulBase(ScalarFromUint64(m)),
	}, nil
}

func (d *Decoder) Decode(p Point) (uint64, error) {
	gamma := p
	for i := uint64(0); i <= d.m; i++ {
		var key [PointBytes]byte
		copy(key[:], gamma.Bytes())
		if j, ok := d.baby[key]; ok {
			v := i*d.m + j
			if v < d.bound {
				return v, nil
			}
			break
		}
		gamma = PointSub(gamma, d.giant)
	}
	return 0, fmt.Errorf("decoder: plaintext outside [0, %d)", d.bound)
}

// GenerateKeyPair returns a secret scalar x and its public key x*G.
func GenerateKeyPair(r io.Reader) (Scalar, Point, error) {
	x, err := RandomScalar(r)
	if err != nil {
		return Scalar{}, Point{}, err
	}
	return x, MulBase(x), nil
}
