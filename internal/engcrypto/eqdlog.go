package engcrypto

// CheckEqDlog evaluates z*A == t1 + e*X and z*B == t2 + e*Y for an externally
// derived challenge e. Together with SimulateEqDlogCommitments it is the
// building block for OR-composed discrete log equality proofs.
func CheckEqDlog(A, B, X, Y, t1, t2 Point, e, z Scalar) bool {
	if !PointEq(MulPoint(A, z), PointAdd(t1, MulPoint(X, e))) {
		return false
	}
	return PointEq(MulPoint(B, z), PointAdd(t2, MulPoint(Y, e)))
}

// SimulateEqDlogCommitments returns commitments that satisfy the verification
// equations for a chosen (e, z) without knowing the witness.
func SimulateEqDlogCommitments(A, B, X, Y Point, e, z Scalar) (Point, Point) {
	t1 := PointSub(MulPoint(A, z), MulPoint(X, e))
	t2 := PointSub(MulPoint(B, z), MulPoint(Y, e))
	return t1, t2
}
