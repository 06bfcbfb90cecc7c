package engcrypto

import "fmt"

const ShareProofBytes = 5 * 32

// EncryptedShare is a decryption share x*C1 encrypted under a user key U:
//
//	A = r*G
//	B = x*C1 + r*U
//
// The holder of u (U = u*G) recovers the share as B - u*A.
type EncryptedShare struct {
	A Point
	B Point
}

// ShareProof proves that an EncryptedShare was built from the secret x behind
// the network key Y = x*G, for a given ciphertext C1 and user key U.
type ShareProof struct {
	K1 Point  // wx*G
	K2 Point  // wr*G
	K3 Point  // wx*C1 + wr*U
	SX Scalar // wx + e*x
	SR Scalar // wr + e*r
}

const shareProofDomain = "eng/v1/relay/encshare"

func shareChallenge(Y, C1, U Point, es EncryptedShare, k1, k2, k3 Point) (Scalar, error) {
	tr := NewTranscript(shareProofDomain)
	_ = tr.AppendMessage("Y", Y.Bytes())
	_ = tr.AppendMessage("C1", C1.Bytes())
	_ = tr.AppendMessage("U", U.Bytes())
	_ = tr.AppendMessage("A", es.A.Bytes())
	_ = tr.AppendMessage("B", es.B.Bytes())
	_ = tr.AppendMessage("K1", k1.Bytes())
	_ = tr.AppendMessage("K2", k2.Bytes())
	_ = tr.AppendMessage("K3", k3.Bytes())
	return tr.ChallengeScalar("e")
}

// EncryptShare computes the encrypted decryption share of ct for user key U
// together with its proof. r, wx and wr must be fresh random scalars.
func EncryptShare(x Scalar, ct Ciphertext, U Point, r, wx, wr Scalar) (EncryptedShare, ShareProof, error) {
	if r.IsZero() || wx.IsZero() || wr.IsZero() {
		return EncryptedShare{}, ShareProof{}, fmt.Errorf("encshare: randomness must be non-zero")
	}
	es := EncryptedShare{
		A: MulBase(r),
		B: PointAdd(MulPoint(ct.C1, x), MulPoint(U, r)),
	}
	k1 := MulBase(wx)
	k2 := MulBase(wr)
	k3 := PointAdd(MulPoint(ct.C1, wx), MulPoint(U, wr))
	e, err := shareChallenge(MulBase(x), ct.C1, U, es, k1, k2, k3)
	if err != nil {
		return EncryptedShare{}, ShareProof{}, err
	}
	return es, ShareProof{
		K1: k1,
		K2: k2,
		K3: k3,
		SX: ScalarAdd(wx, ScalarMul(e, x)),
		SR: ScalarAdd(wr, ScalarMul(e, r)),
	}, nil
}

func VerifyShare(Y Point, ct Ciphertext, U Point, es EncryptedShare, proof ShareProof) (bool, error) {
	e, err := shareChallenge(Y, ct.C1, U, es, proof.K1, proof.K2, proof.K3)
	if err != nil {
		return false, err
	}
	// sx*G == K1 + e*Y
	if !PointEq(MulBase(proof.SX), PointAdd(proof.K1, MulPoint(Y, e))) {
		return false, nil
	}
	// sr*G == K2 + e*A
	if !PointEq(MulBase(proof.SR), PointAdd(proof.K2, MulPoint(es.A, e))) {
		return false, nil
	}
	// sx*C1 + sr*U == K3 + e*B
	lhs := PointAdd(MulPoint(ct.C1, proof.SX), MulPoint(U, proof.SR))
	return PointEq(lhs, PointAdd(proof.K3, MulPoint(es.B, e))), nil
}

// OpenShare decrypts an encrypted share with the user secret u and returns
// the plaintext point of ct.
func OpenShare(u Scalar, ct Ciphertext, es EncryptedShare) Point {
	d := PointSub(es.B, MulPoint(es.A, u))
	return PointSub(ct.C2, d)
}

// Encoding: K1(32)||K2(32)||K3(32)||sx(32)||sr(32)
func EncodeShareProof(p ShareProof) []byte {
	return concatBytes(p.K1.Bytes(), p.K2.Bytes(), p.K3.Bytes(), p.SX.Bytes(), p.SR.Bytes())
}

func DecodeShareProof(b []byte) (ShareProof, error) {
	if len(b) != ShareProofBytes {
		return ShareProof{}, fmt.Errorf("encshare: expected %d bytes", ShareProofBytes)
	}
	r := NewReader(b)
	var (
		p   ShareProof
		err error
	)
	if p.K1, err = r.TakePoint(); err != nil {
		return ShareProof{}, err
	}
	if p.K2, err = r.TakePoint(); err != nil {
		return ShareProof{}, err
	}
	if p.K3, err = r.TakePoint(); err != nil {
		return ShareProof{}, err
	}
	if p.SX, err = r.TakeScalar(); err != nil {
		return ShareProof{}, err
	}
	if p.SR, err = r.TakeScalar(); err != nil {
		return ShareProof{}, err
	}
	return p, nil
}
