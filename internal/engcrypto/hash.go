package engcrypto

import (
	"crypto/sha512"
	"fmt"
	"hash"
)

var hashToScalarPrefix = []byte("ENGv1|hash_to_scalar|")

func updateLenBytes(h hash.Hash, b []byte) {
	h.Write(u32le(uint32(len(b))))
	h.Write(b)
}

// HashToScalar hashes length-prefixed messages under a domain separator into
// a uniformly distributed scalar.
func HashToScalar(domainSep string, msgs ...[]byte) (Scalar, error) {
	h := sha512.New()
	h.Write(hashToScalarPrefix)
	updateLenBytes(h, []byte(domainSep))
	for _, m := range msgs {
		if m == nil {
			return Scalar{}, fmt.Errorf("hashToScalar: nil msg")
		}
		updateLenBytes(h, m)
	}
	return ScalarFromUniformBytes(h.Sum(nil))
}

// HashToNonzeroScalar retries with a counter suffix until the result is
// non-zero.
func HashToNonzeroScalar(domainSep string, msgs ...[]byte) (Scalar, error) {
	for counter := uint32(0); counter < 256; counter++ {
		all := append(append([][]byte(nil), msgs...), u32le(counter))
		s, err := HashToScalar(domainSep, all...)
		if err != nil {
			return Scalar{}, err
		}
		if !s.IsZero() {
			return s, nil
		}
	}
	return Scalar{}, fmt.Errorf("hashToNonzeroScalar: no non-zero scalar found")
}
