package rng

import (
	"encoding/binary"
	"fmt"
	"io"

	"encryptednumbers/internal/engcrypto"
)

// MaxTicketRange bounds high-low+1. Proof size and verification cost are
// linear in the range width.
const MaxTicketRange = 1024

const rangeProofDomain = "eng/v1/rng/range-or"

// RangeProof is a 1-of-N OR-proof that a ciphertext (C1, C2) under Y
// encrypts some v in [low, high]. Branch i is the eq-dlog statement
//
//	C1 = rho*G and C2 - (low+i)*G = rho*Y
//
// The real branch is proven; every other branch is simulated. Branch
// challenges sum to the Fiat-Shamir challenge, so E holds all but the last.
// The challenge covers the submitting provider, so a proof only verifies
// for the account that produced it.
type RangeProof struct {
	E  []engcrypto.Scalar // len n-1
	T1 []engcrypto.Point  // len n
	T2 []engcrypto.Point  // len n
	Z  []engcrypto.Scalar // len n
}

func rangeWidth(low, high uint32) (int, error) {
	if low > high {
		return 0, ErrInvalidRange.Wrapf("low %d > high %d", low, high)
	}
	n := uint64(high) - uint64(low) + 1
	if n > MaxTicketRange {
		return 0, ErrInvalidRange.Wrapf("range width %d exceeds %d", n, MaxTicketRange)
	}
	return int(n), nil
}

// branchTargets returns C2 - (low+i)*G for every i in [0, n).
func branchTargets(ct engcrypto.Ciphertext, low uint32, n int) []engcrypto.Point {
	out := make([]engcrypto.Point, n)
	g := engcrypto.PointBase()
	cur := engcrypto.PointSub(ct.C2, engcrypto.EncodeValue(uint64(low)))
	for i := 0; i < n; i++ {
		out[i] = cur
		cur = engcrypto.PointSub(cur, g)
	}
	return out
}

func rangeChallenge(pk engcrypto.Point, provider string, ct engcrypto.Ciphertext, low, high uint32, t1, t2 []engcrypto.Point) (engcrypto.Scalar, error) {
	var bounds [8]byte
	binary.LittleEndian.PutUint32(bounds[:4], low)
	binary.LittleEndian.PutUint32(bounds[4:], high)

	tr := engcrypto.NewTranscript(rangeProofDomain)
	_ = tr.AppendMessage("pk", pk.Bytes())
	_ = tr.AppendMessage("provider", []byte(provider))
	_ = tr.AppendMessage("bounds", bounds[:])
	_ = tr.AppendMessage("c1", ct.C1.Bytes())
	_ = tr.AppendMessage("c2", ct.C2.Bytes())
	if err := tr.AppendPoints("t1", t1...); err != nil {
		return engcrypto.Scalar{}, err
	}
	if err := tr.AppendPoints("t2", t2...); err != nil {
		return engcrypto.Scalar{}, err
	}
	return tr.ChallengeScalar("e")
}

// ProveRange proves that ct = Enc(pk, value; rho) with value in [low, high]
// on behalf of provider.
func ProveRange(pk engcrypto.Point, provider string, ct engcrypto.Ciphertext, low, high, value uint32, rho engcrypto.Scalar, src io.Reader) (RangeProof, error) {
	n, err := rangeWidth(low, high)
	if err != nil {
		return RangeProof{}, err
	}
	if value < low || value > high {
		return RangeProof{}, ErrInvalidRange.Wrapf("value %d outside [%d, %d]", value, low, high)
	}
	k := int(value - low)

	G := engcrypto.PointBase()
	targets := branchTargets(ct, low, n)
	e := make([]engcrypto.Scalar, n)
	z := make([]engcrypto.Scalar, n)
	t1 := make([]engcrypto.Point, n)
	t2 := make([]engcrypto.Point, n)

	for i := 0; i < n; i++ {
		if i == k {
			continue
		}
		if e[i], err = engcrypto.RandomScalar(src); err != nil {
			return RangeProof{}, err
		}
		if z[i], err = engcrypto.RandomScalar(src); err != nil {
			return RangeProof{}, err
		}
		t1[i], t2[i] = engcrypto.SimulateEqDlogCommitments(G, pk, ct.C1, targets[i], e[i], z[i])
	}

	w, err := engcrypto.RandomScalar(src)
	if err != nil {
		return RangeProof{}, err
	}
	t1[k] = engcrypto.MulBase(w)
	t2[k] = engcrypto.MulPoint(pk, w)

	c, err := rangeChallenge(pk, provider, ct, low, high, t1, t2)
	if err != nil {
		return RangeProof{}, err
	}
	eReal := c
	for i := 0; i < n; i++ {
		if i != k {
			eReal = engcrypto.ScalarSub(eReal, e[i])
		}
	}
	e[k] = eReal
	z[k] = engcrypto.ScalarAdd(w, engcrypto.ScalarMul(eReal, rho))

	return RangeProof{E: e[:n-1], T1: t1, T2: t2, Z: z}, nil
}

// VerifyRange checks a RangeProof for ct under pk as submitted by provider. It returns false for a
// well-formed but invalid proof and an error for malformed input.
func VerifyRange(pk engcrypto.Point, provider string, ct engcrypto.Ciphertext, low, high uint32, proof RangeProof) (bool, error) {
	n, err := rangeWidth(low, high)
	if err != nil {
		return false, err
	}
	if len(proof.E) != n-1 || len(proof.T1) != n || len(proof.T2) != n || len(proof.Z) != n {
		return false, fmt.Errorf("range proof: expected %d branches", n)
	}
	// A zero nonce leaves the plaintext in the clear.
	if engcrypto.PointEq(ct.C1, engcrypto.PointZero()) {
		return false, nil
	}

	c, err := rangeChallenge(pk, provider, ct, low, high, proof.T1, proof.T2)
	if err != nil {
		return false, err
	}
	last := c
	for _, ei := range proof.E {
		last = engcrypto.ScalarSub(last, ei)
	}

	G := engcrypto.PointBase()
	targets := branchTargets(ct, low, n)
	for i := 0; i < n; i++ {
		ei := last
		if i < n-1 {
			ei = proof.E[i]
		}
		if !engcrypto.CheckEqDlog(G, pk, ct.C1, targets[i], proof.T1[i], proof.T2[i], ei, proof.Z[i]) {
			return false, nil
		}
	}
	return true, nil
}

// EncodedRangeProofLen is the size of EncodeRangeProof's output for n branches.
func EncodedRangeProofLen(n int) int {
	return 2 + (n-1)*32 + n*96
}

// Encoding: n(u16 le) || e_0..e_{n-2} (32 each) || n * (t1(32) || t2(32) || z(32))
func EncodeRangeProof(p RangeProof) []byte {
	n := len(p.T1)
	out := make([]byte, 0, EncodedRangeProofLen(n))
	out = binary.LittleEndian.AppendUint16(out, uint16(n))
	for _, e := range p.E {
		out = append(out, e.Bytes()...)
	}
	for i := 0; i < n; i++ {
		out = append(out, p.T1[i].Bytes()...)
		out = append(out, p.T2[i].Bytes()...)
		out = append(out, p.Z[i].Bytes()...)
	}
	return out
}

func DecodeRangeProof(b []byte) (RangeProof, error) {
	r := engcrypto.NewReader(b)
	n16, err := r.TakeU16LE()
	if err != nil {
		return RangeProof{}, fmt.Errorf("range proof: %w", err)
	}
	n := int(n16)
	if n == 0 || n > MaxTicketRange {
		return RangeProof{}, fmt.Errorf("range proof: invalid branch count %d", n)
	}
	p := RangeProof{
		E:  make([]engcrypto.Scalar, n-1),
		T1: make([]engcrypto.Point, n),
		T2: make([]engcrypto.Point, n),
		Z:  make([]engcrypto.Scalar, n),
	}
	for i := 0; i < n-1; i++ {
		if p.E[i], err = r.TakeScalar(); err != nil {
			return RangeProof{}, fmt.Errorf("range proof e[%d]: %w", i, err)
		}
	}
	for i := 0; i < n; i++ {
		if p.T1[i], err = r.TakePoint(); err != nil {
			return RangeProof{}, fmt.Errorf("range proof t1[%d]: %w", i, err)
		}
		if p.T2[i], err = r.TakePoint(); err != nil {
			return RangeProof{}, fmt.Errorf("range proof t2[%d]: %w", i, err)
		}
		if p.Z[i], err = r.TakeScalar(); err != nil {
			return RangeProof{}, fmt.Errorf("range proof z[%d]: %w", i, err)
		}
	}
	if !r.Done() {
		return RangeProof{}, fmt.Errorf("range proof: trailing bytes")
	}
	return p, nil
}
