// Package confidential holds the ciphertext store and the access control
// registry. Ciphertexts are addressed by opaque handles; every operation
// creates a new handle and never touches the plaintext.
package confidential

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/state"
)

// EnginePrincipal is the engine's own ACL identity. It is granted on every
// handle the engine creates so later Combine calls can consume it.
const EnginePrincipal = "engine"

const handleDomain = "eng/v1/handle"

// Handle is an opaque reference to a stored ciphertext.
type Handle string

func (h Handle) String() string { return string(h) }

type Op string

const (
	OpAdd Op = "add"
	OpSub Op = "sub"
)

// Grant records an ACL entry added during the current invocation.
type Grant struct {
	Handle    Handle
	Principal string
	Height    int64
}

// Store operates directly on the application state it wraps. Callers run it
// against a staged clone so a failed invocation leaves nothing behind.
type Store struct {
	st     *state.State
	grants []Grant
}

func NewStore(st *state.State) *Store {
	return &Store{st: st}
}

func (s *Store) NetworkKey() (engcrypto.Point, error) {
	if len(s.st.NetworkKey) == 0 {
		return engcrypto.Point{}, ErrNoNetworkKey
	}
	pk, err := engcrypto.PointFromBytesCanonical(s.st.NetworkKey)
	if err != nil {
		return engcrypto.Point{}, ErrNoNetworkKey.Wrap(err.Error())
	}
	return pk, nil
}

func (s *Store) deriveHandle(ct engcrypto.Ciphertext) Handle {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], s.st.NextHandleSeq)
	s.st.NextHandleSeq++

	h := blake3.New()
	_, _ = h.Write([]byte(handleDomain))
	_, _ = h.Write(seq[:])
	_, _ = h.Write(ct.C1.Bytes())
	_, _ = h.Write(ct.C2.Bytes())
	return Handle(engcrypto.BytesToHex(h.Sum(nil)))
}

// Put stores ct under a fresh handle and grants the engine access to it.
func (s *Store) Put(ct engcrypto.Ciphertext, height int64) (Handle, error) {
	h := s.deriveHandle(ct)
	s.st.Ciphertexts[string(h)] = &state.Ciphertext{
		C1:        ct.C1.Bytes(),
		C2:        ct.C2.Bytes(),
		CreatedAt: height,
	}
	if err := s.Authorize(h, EnginePrincipal, height); err != nil {
		return "", err
	}
	return h, nil
}

// PutRaw validates encoded ciphertext components before storing them.
func (s *Store) PutRaw(c1, c2 []byte, height int64) (Handle, error) {
	ct, err := engcrypto.CiphertextFromParts(c1, c2)
	if err != nil {
		return "", ErrInvalidCiphertext.Wrap(err.Error())
	}
	return s.Put(ct, height)
}

func (s *Store) Exists(h Handle) bool {
	_, ok := s.st.Ciphertexts[string(h)]
	return ok
}

func (s *Store) Get(h Handle) (engcrypto.Ciphertext, error) {
	raw, ok := s.st.Ciphertexts[string(h)]
	if !ok || raw == nil {
		return engcrypto.Ciphertext{}, ErrUnknownHandle.Wrapf("handle %s", h)
	}
	ct, err := engcrypto.CiphertextFromParts(raw.C1, raw.C2)
	if err != nil {
		return engcrypto.Ciphertext{}, ErrInvalidCiphertext.Wrapf("handle %s: %v", h, err)
	}
	return ct, nil
}

// TrivialZero stores an encryption of zero. Its nonce is derived from seed,
// so the value is public by construction.
func (s *Store) TrivialZero(height int64, seed ...[]byte) (Handle, error) {
	pk, err := s.NetworkKey()
	if err != nil {
		return "", err
	}
	r, err := engcrypto.HashToNonzeroScalar("eng/v1/trivial-zero", seed...)
	if err != nil {
		return "", err
	}
	ct, err := engcrypto.EncryptValue(pk, 0, r)
	if err != nil {
		return "", err
	}
	return s.Put(ct, height)
}

// Combine applies op to the ciphertexts behind a and b and stores the result
// under a new handle. Both operands must be usable by the engine.
func (s *Store) Combine(op Op, a, b Handle, height int64) (Handle, error) {
	for _, h := range []Handle{a, b} {
		if !s.Exists(h) {
			return "", ErrUnknownHandle.Wrapf("handle %s", h)
		}
		if !s.IsAuthorized(h, EnginePrincipal) {
			return "", ErrNotAuthorized.Wrapf("engine on %s", h)
		}
	}
	ca, err := s.Get(a)
	if err != nil {
		return "", err
	}
	cb, err := s.Get(b)
	if err != nil {
		return "", err
	}

	var out engcrypto.Ciphertext
	switch op {
	case OpAdd:
		out = engcrypto.AddCiphertexts(ca, cb)
	case OpSub:
		out = engcrypto.SubCiphertexts(ca, cb)
	default:
		return "", ErrUnsupportedOp.Wrapf("op %q", op)
	}
	return s.Put(out, height)
}
