package engcrypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) (Scalar, Point) {
	t.Helper()
	x, y, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	return x, y
}

func mustEncrypt(t *testing.T, pk Point, m uint64) Ciphertext {
	t.Helper()
	r, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	ct, err := EncryptValue(pk, m, r)
	require.NoError(t, err)
	return ct
}

func TestElGamal_RoundTrip(t *testing.T) {
	x, y := testKeyPair(t)
	dec, err := NewDecoder(1 << 12)
	require.NoError(t, err)

	for _, m := range []uint64{0, 1, 7, 100, 4095} {
		ct := mustEncrypt(t, y, m)
		got, err := dec.Decode(Decrypt(x, ct))
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestElGamal_RejectsZeroRandomness(t *testing.T) {
	_, y := testKeyPair(t)
	_, err := EncryptValue(y, 5, Scalar{})
	require.Error(t, err)
}

func TestElGamal_HomomorphicAddSub(t *testing.T) {
	x, y := testKeyPair(t)
	dec, err := NewDecoder(1 << 10)
	require.NoError(t, err)

	a := mustEncrypt(t, y, 42)
	b := mustEncrypt(t, y, 58)

	sum, err := dec.Decode(Decrypt(x, AddCiphertexts(a, b)))
	require.NoError(t, err)
	require.Equal(t, uint64(100), sum)

	diff, err := dec.Decode(Decrypt(x, SubCiphertexts(b, a)))
	require.NoError(t, err)
	require.Equal(t, uint64(16), diff)
}

func TestCiphertext_FromPartsRoundTrip(t *testing.T) {
	_, y := testKeyPair(t)
	ct := mustEncrypt(t, y, 3)

	got, err := CiphertextFromParts(ct.C1.Bytes(), ct.C2.Bytes())
	require.NoError(t, err)
	require.True(t, PointEq(ct.C1, got.C1))
	require.True(t, PointEq(ct.C2, got.C2))

	_, err = CiphertextFromParts(ct.C1.Bytes()[:PointBytes-1], ct.C2.Bytes())
	require.Error(t, err)

	bad := make([]byte, PointBytes)
	for i := range bad {
		bad[i] = 0xff
	}
	_, err = CiphertextFromParts(ct.C1.Bytes(), bad)
	require.Error(t, err)
}
