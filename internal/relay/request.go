// Package relay is the decryption relay. It holds the network secret key,
// checks a signed, time-bounded request against the ledger ACL and answers
// with decryption shares encrypted to a key chosen by the requester. The
// relay never sees a plaintext.
package relay

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"strconv"
	"time"

	"encryptednumbers/internal/engcrypto"
)

const (
	requestDomain = "eng/relay/decrypt/v0"

	MaxDurationDays = 365
	day             = 24 * time.Hour
)

// DecryptRequest asks for the plaintexts behind Handles on behalf of
// Principal. Shares are returned encrypted to UserKey. The signature is by
// the principal's registered account key and covers every other field.
type DecryptRequest struct {
	Principal      string   `json:"principal"`
	Handles        []string `json:"handles"`
	UserKey        string   `json:"userKey"`
	ChainID        string   `json:"chainId"`
	StartTimestamp int64    `json:"startTimestamp"`
	DurationDays   int      `json:"durationDays"`
	Signature      []byte   `json:"signature"`
}

// SignBytes = DOMAIN || 0 || principal || 0 || chainId || 0 || userKey || 0 ||
// start || 0 || days || 0 || handle_0 || 0 || ... || handle_n-1
func (r DecryptRequest) SignBytes() []byte {
	out := make([]byte, 0, 256)
	out = append(out, requestDomain...)
	for _, field := range []string{
		r.Principal,
		r.ChainID,
		r.UserKey,
		strconv.FormatInt(r.StartTimestamp, 10),
		strconv.Itoa(r.DurationDays),
	} {
		out = append(out, 0)
		out = append(out, field...)
	}
	for _, h := range r.Handles {
		out = append(out, 0)
		out = append(out, h...)
	}
	return out
}

// ValidateBasic checks the request shape without consulting the ledger or
// the clock.
func (r DecryptRequest) ValidateBasic(maxHandles int) error {
	if r.Principal == "" {
		return fmt.Errorf("missing principal")
	}
	if len(r.Handles) == 0 {
		return fmt.Errorf("no handles")
	}
	if len(r.Handles) > maxHandles {
		return fmt.Errorf("%d handles exceeds limit %d", len(r.Handles), maxHandles)
	}
	seen := make(map[string]bool, len(r.Handles))
	for _, h := range r.Handles {
		if h == "" {
			return fmt.Errorf("empty handle")
		}
		if seen[h] {
			return fmt.Errorf("duplicate handle %s", h)
		}
		seen[h] = true
	}
	if _, err := r.userKey(); err != nil {
		return err
	}
	if r.ChainID == "" {
		return fmt.Errorf("missing chainId")
	}
	if r.DurationDays < 1 || r.DurationDays > MaxDurationDays {
		return fmt.Errorf("durationDays must be in [1, %d]", MaxDurationDays)
	}
	if len(r.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("signature must be %d bytes", ed25519.SignatureSize)
	}
	return nil
}

func (r DecryptRequest) userKey() (engcrypto.Point, error) {
	raw, err := engcrypto.HexToBytes(r.UserKey)
	if err != nil {
		return engcrypto.Point{}, fmt.Errorf("userKey: %w", err)
	}
	U, err := engcrypto.PointFromBytesCanonical(raw)
	if err != nil {
		return engcrypto.Point{}, fmt.Errorf("userKey: %w", err)
	}
	if engcrypto.PointEq(U, engcrypto.PointZero()) {
		return engcrypto.Point{}, fmt.Errorf("userKey is the identity")
	}
	return U, nil
}

// Window returns the validity interval of the request.
func (r DecryptRequest) Window() (time.Time, time.Time) {
	start := time.Unix(r.StartTimestamp, 0)
	return start, start.Add(time.Duration(r.DurationDays) * day)
}

// UserKeyPair is the requester's ephemeral key for one or more requests.
type UserKeyPair struct {
	Secret engcrypto.Scalar
	Public engcrypto.Point
}

func NewUserKeyPair(rand io.Reader) (UserKeyPair, error) {
	u, U, err := engcrypto.GenerateKeyPair(rand)
	if err != nil {
		return UserKeyPair{}, err
	}
	return UserKeyPair{Secret: u, Public: U}, nil
}

// NewDecryptRequest builds and signs a request valid from start for days.
func NewDecryptRequest(priv ed25519.PrivateKey, principal, chainID string, handles []string, user UserKeyPair, start time.Time, days int) DecryptRequest {
	req := DecryptRequest{
		Principal:      principal,
		Handles:        append([]string(nil), handles...),
		UserKey:        engcrypto.BytesToHex(user.Public.Bytes()),
		ChainID:        chainID,
		StartTimestamp: start.Unix(),
		DurationDays:   days,
	}
	req.Signature = ed25519.Sign(priv, req.SignBytes())
	return req
}

// Share is the relay's answer for one handle.
type Share struct {
	Handle string `json:"handle"`
	C1     string `json:"c1"`
	C2     string `json:"c2"`
	A      string `json:"a"`
	B      string `json:"b"`
	Proof  string `json:"proof"`
}

type DecryptResponse struct {
	RequestID string  `json:"requestId"`
	Shares    []Share `json:"shares"`
}

type errorResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error"`
}

type NetworkKeyResponse struct {
	ChainID    string `json:"chainId"`
	NetworkKey string `json:"networkKey"`
}
