package rng

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/confidential"
	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/state"
)

// hashReader is a deterministic byte stream sha512(seed || counter) for
// reproducible draws.
type hashReader struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func newHashReader(seed []byte) (*hashReader, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("hashReader: empty seed")
	}
	return &hashReader{seed: append([]byte(nil), seed...)}, nil
}

func (r *hashReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			h := sha512.New()
			h.Write([]byte("eng/test/rng/hash-reader"))
			h.Write(r.seed)
			var c [8]byte
			binary.LittleEndian.PutUint64(c[:], r.counter)
			h.Write(c[:])
			r.counter++
			r.buf = h.Sum(nil)
		}
		k := copy(p[n:], r.buf)
		r.buf = r.buf[k:]
		n += k
	}
	return n, nil
}

func testNetworkKey(t *testing.T) (engcrypto.Scalar, engcrypto.Point) {
	t.Helper()
	x, pk, err := engcrypto.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	return x, pk
}

func decryptTo(t *testing.T, x engcrypto.Scalar, ct engcrypto.Ciphertext) uint64 {
	t.Helper()
	dec, err := engcrypto.NewDecoder(1 << 12)
	require.NoError(t, err)
	v, err := dec.Decode(engcrypto.Decrypt(x, ct))
	require.NoError(t, err)
	return v
}

func TestRangeProof_AcceptsEveryValueInSmallRange(t *testing.T) {
	_, pk := testNetworkKey(t)
	for v := uint32(3); v <= 7; v++ {
		rho, err := engcrypto.RandomScalar(rand.Reader)
		require.NoError(t, err)
		ct, err := engcrypto.EncryptValue(pk, uint64(v), rho)
		require.NoError(t, err)

		proof, err := ProveRange(pk, "kms", ct, 3, 7, v, rho, rand.Reader)
		require.NoError(t, err)
		ok, err := VerifyRange(pk, "kms", ct, 3, 7, proof)
		require.NoError(t, err)
		require.True(t, ok, "value %d", v)
	}
}

func TestRangeProof_RejectsOutOfRangePlaintext(t *testing.T) {
	_, pk := testNetworkKey(t)
	rho, err := engcrypto.RandomScalar(rand.Reader)
	require.NoError(t, err)

	// Encrypt 9 but build the proof as if it were 5 in [1, 8].
	ct, err := engcrypto.EncryptValue(pk, 9, rho)
	require.NoError(t, err)
	proof, err := ProveRange(pk, "kms", ct, 1, 8, 5, rho, rand.Reader)
	require.NoError(t, err)

	ok, err := VerifyRange(pk, "kms", ct, 1, 8, proof)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = ProveRange(pk, "kms", ct, 1, 8, 9, rho, rand.Reader)
	require.True(t, errorsmod.IsOf(err, ErrInvalidRange))
}

func TestRangeProof_BoundToCiphertextAndRange(t *testing.T) {
	_, pk := testNetworkKey(t)
	ticket, _, err := NewTicket(pk, "kms", 1, 4, rand.Reader)
	require.NoError(t, err)
	other, _, err := NewTicket(pk, "kms", 1, 4, rand.Reader)
	require.NoError(t, err)

	ok, err := VerifyRange(pk, "kms", other.CT, 1, 4, ticket.Proof)
	require.NoError(t, err)
	require.False(t, ok)

	// Same branch count, shifted range.
	ok, err = VerifyRange(pk, "kms", ticket.CT, 2, 5, ticket.Proof)
	require.NoError(t, err)
	require.False(t, ok)

	// Different branch count is malformed.
	_, err = VerifyRange(pk, "kms", ticket.CT, 1, 5, ticket.Proof)
	require.Error(t, err)

	// Another provider cannot claim the proof.
	ok, err = VerifyRange(pk, "copycat", ticket.CT, 1, 4, ticket.Proof)
	require.NoError(t, err)
	require.False(t, ok)

	// Trivial encryptions expose the plaintext and are refused.
	trivial := engcrypto.Ciphertext{C1: engcrypto.PointZero(), C2: engcrypto.EncodeValue(2)}
	ok, err = VerifyRange(pk, "kms", trivial, 1, 4, ticket.Proof)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRangeProof_EncodingRoundTripAndTamper(t *testing.T) {
	_, pk := testNetworkKey(t)
	ticket, _, err := NewTicket(pk, "kms", 10, 15, rand.Reader)
	require.NoError(t, err)

	b := EncodeRangeProof(ticket.Proof)
	require.Len(t, b, 2+5*32+6*96)

	decoded, err := DecodeRangeProof(b)
	require.NoError(t, err)
	ok, err := VerifyRange(pk, "kms", ticket.CT, 10, 15, decoded)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = DecodeRangeProof(append(append([]byte(nil), b...), 0))
	require.Error(t, err)
	_, err = DecodeRangeProof(b[:len(b)-1])
	require.Error(t, err)

	// Swap two challenges; the sum still matches but the branches do not.
	swapped := ticket.Proof
	swapped.E = append([]engcrypto.Scalar(nil), ticket.Proof.E...)
	swapped.E[0], swapped.E[1] = swapped.E[1], swapped.E[0]
	ok, err = VerifyRange(pk, "kms", ticket.CT, 10, 15, swapped)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTicket_GameRangeDecryptsInBounds(t *testing.T) {
	x, pk := testNetworkKey(t)
	src, err := newHashReader([]byte("game-range"))
	require.NoError(t, err)

	ticket, v, err := NewTicket(pk, "kms", 1, 100, src)
	require.NoError(t, err)
	require.NoError(t, ticket.Verify(pk, "kms"))
	require.Equal(t, uint64(v), decryptTo(t, x, ticket.CT))

	round, err := TicketFromCodec(ticket.ToCodec())
	require.NoError(t, err)
	require.NoError(t, round.Verify(pk, "kms"))
}

func TestUniform_CoversRangeEvenly(t *testing.T) {
	src, err := newHashReader([]byte("uniform"))
	require.NoError(t, err)

	const draws = 20000
	counts := make([]int, 101)
	samples := make(stats.Float64Data, 0, draws)
	for i := 0; i < draws; i++ {
		v, err := Uniform(src, 1, 100)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, uint32(1))
		require.LessOrEqual(t, v, uint32(100))
		counts[v]++
		samples = append(samples, float64(v))
	}
	for v := 1; v <= 100; v++ {
		require.Greater(t, counts[v], 100, "value %d under-represented", v)
		require.Less(t, counts[v], 320, "value %d over-represented", v)
	}
	mean, err := stats.Mean(samples)
	require.NoError(t, err)
	require.InDelta(t, 50.5, mean, 1.5)

	_, err = Uniform(src, 5, 4)
	require.True(t, errorsmod.IsOf(err, ErrInvalidRange))
	v, err := Uniform(src, 9, 9)
	require.NoError(t, err)
	require.Equal(t, uint32(9), v)
}

func newTestGenerator(t *testing.T, providers ...string) (*Generator, *confidential.Store, *state.State, engcrypto.Scalar, engcrypto.Point) {
	t.Helper()
	x, pk := testNetworkKey(t)
	st := state.NewState()
	st.NetworkKey = pk.Bytes()
	st.Entropy.Providers = providers
	store := confidential.NewStore(st)
	return NewGenerator(st, store), store, st, x, pk
}

func makeTickets(t *testing.T, pk engcrypto.Point, provider string, low, high uint32, n int) ([]codec.EntropyTicket, []uint32) {
	t.Helper()
	out := make([]codec.EntropyTicket, 0, n)
	values := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		ticket, v, err := NewTicket(pk, provider, low, high, rand.Reader)
		require.NoError(t, err)
		out = append(out, ticket.ToCodec())
		values = append(values, v)
	}
	return out, values
}

func TestGenerator_SubmitAndGenerateFIFO(t *testing.T) {
	g, store, st, x, pk := newTestGenerator(t, "kms")
	tickets, values := makeTickets(t, pk, "kms", 1, 8, 3)

	n, err := g.Submit("kms", tickets, 5)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, g.Available(1, 8))
	require.Equal(t, 0, g.Available(1, 100))
	require.Equal(t, []uint64{1, 2, 3}, []uint64{st.Entropy.Pool[0].ID, st.Entropy.Pool[1].ID, st.Entropy.Pool[2].ID})

	for i := 0; i < 3; i++ {
		h, err := g.Generate(1, 8, 6)
		require.NoError(t, err)
		require.True(t, store.IsAuthorized(h, confidential.EnginePrincipal))
		ct, err := store.Get(h)
		require.NoError(t, err)
		require.Equal(t, uint64(values[i]), decryptTo(t, x, ct))
	}
	require.Equal(t, 0, g.PoolSize())
	require.Equal(t, uint64(3), st.Entropy.Spent)
	require.Len(t, st.Entropy.Seen, 3)
	for _, raw := range tickets {
		rec := st.Entropy.Seen[Fingerprint(raw.C1, raw.C2)]
		require.NotNil(t, rec)
		require.Equal(t, int64(6), rec.SpentAt, "ticket %d", rec.ID)
	}

	_, err = g.Generate(1, 8, 7)
	require.True(t, errorsmod.IsOf(err, ErrPoolExhausted))
}

func TestGenerator_GenerateSkipsOtherRanges(t *testing.T) {
	g, _, _, _, pk := newTestGenerator(t, "kms")
	small, _ := makeTickets(t, pk, "kms", 1, 2, 1)
	other, _ := makeTickets(t, pk, "kms", 3, 4, 1)
	_, err := g.Submit("kms", append(other, small...), 1)
	require.NoError(t, err)

	_, err = g.Generate(1, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 1, g.Available(3, 4))
	require.Equal(t, 0, g.Available(1, 2))

	_, err = g.Generate(9, 1, 2)
	require.True(t, errorsmod.IsOf(err, ErrInvalidRange))
}

func TestGenerator_SubmitIsAllOrNothing(t *testing.T) {
	g, _, st, _, pk := newTestGenerator(t, "kms")
	tickets, _ := makeTickets(t, pk, "kms", 1, 4, 2)

	bad := tickets[1]
	bad.Proof = append([]byte(nil), tickets[0].Proof...)
	_, err := g.Submit("kms", []codec.EntropyTicket{tickets[0], bad}, 1)
	require.True(t, errorsmod.IsOf(err, ErrInvalidTicket))
	require.Empty(t, st.Entropy.Pool)
	require.Equal(t, uint64(1), st.Entropy.NextTicketID)

	_, err = g.Submit("mallory", tickets, 1)
	require.True(t, errorsmod.IsOf(err, ErrNotProvider))

	_, err = g.Submit("kms", nil, 1)
	require.True(t, errorsmod.IsOf(err, ErrInvalidTicket))
}

func TestGenerator_SubmitRejectsTicketsUnderOtherKey(t *testing.T) {
	g, _, _, _, _ := newTestGenerator(t, "kms")
	_, otherPK := testNetworkKey(t)
	tickets, _ := makeTickets(t, otherPK, "kms", 1, 4, 1)

	_, err := g.Submit("kms", tickets, 1)
	require.True(t, errorsmod.IsOf(err, ErrInvalidTicket))
}

func TestGenerator_SubmitRejectsReplayedTickets(t *testing.T) {
	g, _, st, _, pk := newTestGenerator(t, "kms", "copycat")
	tickets, _ := makeTickets(t, pk, "kms", 1, 100, 2)

	_, err := g.Submit("kms", tickets, 1)
	require.NoError(t, err)

	// Same provider, same batch again.
	_, err = g.Submit("kms", tickets, 2)
	require.True(t, errorsmod.IsOf(err, ErrDuplicateTicket))

	// Another provider resubmitting public tickets.
	_, err = g.Submit("copycat", tickets[:1], 2)
	require.True(t, errorsmod.IsOf(err, ErrDuplicateTicket))
	require.Equal(t, 2, g.PoolSize())

	// Still refused once the original ticket has been drawn.
	_, err = g.Generate(1, 100, 3)
	require.NoError(t, err)
	_, err = g.Submit("kms", tickets[:1], 4)
	require.True(t, errorsmod.IsOf(err, ErrDuplicateTicket))

	// A repeat inside one submission rejects the whole submission.
	fresh, _ := makeTickets(t, pk, "kms", 1, 100, 1)
	_, err = g.Submit("kms", []codec.EntropyTicket{fresh[0], fresh[0]}, 5)
	require.True(t, errorsmod.IsOf(err, ErrDuplicateTicket))
	require.Equal(t, 1, g.PoolSize())
	require.Equal(t, uint64(3), st.Entropy.NextTicketID)
}

func TestGenerator_ProofIsBoundToProvider(t *testing.T) {
	g, _, st, _, pk := newTestGenerator(t, "kms", "copycat")
	tickets, _ := makeTickets(t, pk, "kms", 1, 4, 1)

	_, err := g.Submit("copycat", tickets, 1)
	require.True(t, errorsmod.IsOf(err, ErrInvalidTicket))
	require.Empty(t, st.Entropy.Seen)

	_, err = g.Submit("kms", tickets, 1)
	require.NoError(t, err)
}

func TestTicketsPerSubmit_FitsDefaultNodeLimits(t *testing.T) {
	const (
		mempoolMaxTxBytes = 1 << 20
		rpcMaxBodyBytes   = 1000000
	)
	_, pk := testNetworkKey(t)
	priv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	addr := codec.AddressFromPubKey(priv.Public().(ed25519.PublicKey))

	n, err := TicketsPerSubmit(1, 100)
	require.NoError(t, err)
	require.Greater(t, n, 1)
	require.Less(t, n, MaxTicketsPerSubmit)

	tickets, _ := makeTickets(t, pk, addr, 1, 100, n)
	tx, err := codec.NewSignedTx(priv, codec.TxEntropySubmit, codec.EntropySubmitTx{Provider: addr, Tickets: tickets}, "18446744073709551615", addr)
	require.NoError(t, err)
	require.LessOrEqual(t, len(tx), MaxSubmitBytes)
	require.Less(t, len(tx), mempoolMaxTxBytes)
	require.Less(t, base64.StdEncoding.EncodedLen(len(tx))+1024, rpcMaxBodyBytes)

	wide, err := TicketsPerSubmit(1, MaxTicketRange)
	require.NoError(t, err)
	require.GreaterOrEqual(t, wide, 1)
	require.LessOrEqual(t, wide*EncodedTicketLen(MaxTicketRange), MaxSubmitBytes)

	narrow, err := TicketsPerSubmit(7, 7)
	require.NoError(t, err)
	require.Equal(t, MaxTicketsPerSubmit, narrow)

	_, err = TicketsPerSubmit(5, 4)
	require.True(t, errorsmod.IsOf(err, ErrInvalidRange))
}
