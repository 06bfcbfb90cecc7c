package engcrypto

import "fmt"

// Ciphertext is an exponential ElGamal ciphertext in additive notation:
//
//	Y = x*G
//	Enc(Y, m; r) = (r*G, m*G + r*Y)
//
// Adding two ciphertexts componentwise adds their plaintexts.
type Ciphertext struct {
	C1 Point
	C2 Point
}

func Encrypt(pk Point, m Point, r Scalar) (Ciphertext, error) {
	if r.IsZero() {
		return Ciphertext{}, fmt.Errorf("elgamal: r must be non-zero")
	}
	return Ciphertext{
		C1: MulBase(r),
		C2: PointAdd(m, MulPoint(pk, r)),
	}, nil
}

// EncryptValue encrypts the integer m.
func EncryptValue(pk Point, m uint64, r Scalar) (Ciphertext, error) {
	return Encrypt(pk, EncodeValue(m), r)
}

// Decrypt returns the plaintext point c2 - x*c1. Recovering the integer
// requires a Decoder.
func Decrypt(sk Scalar, ct Ciphertext) Point {
	return PointSub(ct.C2, MulPoint(ct.C1, sk))
}

func AddCiphertexts(a, b Ciphertext) Ciphertext {
	return Ciphertext{C1: PointAdd(a.C1, b.C1), C2: PointAdd(a.C2, b.C2)}
}

func SubCiphertexts(a, b Ciphertext) Ciphertext {
	return Ciphertext{C1: PointSub(a.C1, b.C1), C2: PointSub(a.C2, b.C2)}
}

func CiphertextFromParts(c1, c2 []byte) (Ciphertext, error) {
	p1, err := PointFromBytesCanonical(c1)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("ciphertext c1: %w", err)
	}
	p2, err := PointFromBytesCanonical(c2)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("ciphertext c2: %w", err)
	}
	return Ciphertext{C1: p1, C2: p2}, nil
}
