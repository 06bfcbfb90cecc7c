package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"encryptednumbers/internal/engcrypto"
)

// StatusError is a non-200 answer from the relay.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay: %d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient talks to the relay at baseURL. A nil hc uses a client with a 30s
// timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) NetworkKey(ctx context.Context) (NetworkKeyResponse, error) {
	var resp NetworkKeyResponse
	err := c.do(ctx, http.MethodGet, "/v1/network-key", nil, &resp)
	return resp, err
}

func (c *Client) Decrypt(ctx context.Context, req DecryptRequest) (DecryptResponse, error) {
	var resp DecryptResponse
	err := c.do(ctx, http.MethodPost, "/v1/decrypt", req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	hres, err := c.http.Do(hreq)
	if err != nil {
		return err
	}
	defer hres.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(hres.Body, 4<<20))
	if err != nil {
		return err
	}
	if hres.StatusCode != http.StatusOK {
		var er errorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return &StatusError{Code: hres.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("relay: decode %s: %w", path, err)
	}
	return nil
}

// Reveal sends req, checks every share proof against networkKey and returns
// the plaintext behind each handle. When ledger is non-nil the ciphertext
// echoed by the relay must match the ledger's copy.
func (c *Client) Reveal(ctx context.Context, req DecryptRequest, user UserKeyPair, networkKey engcrypto.Point, dec *engcrypto.Decoder, ledger Ledger) (map[string]uint64, error) {
	resp, err := c.Decrypt(ctx, req)
	if err != nil {
		return nil, err
	}
	return OpenShares(ctx, req, resp, user, networkKey, dec, ledger)
}

// OpenShares verifies and opens the shares of resp. It fails unless resp
// answers exactly the handles of req.
func OpenShares(ctx context.Context, req DecryptRequest, resp DecryptResponse, user UserKeyPair, networkKey engcrypto.Point, dec *engcrypto.Decoder, ledger Ledger) (map[string]uint64, error) {
	wanted := make(map[string]bool, len(req.Handles))
	for _, h := range req.Handles {
		wanted[h] = true
	}
	if len(resp.Shares) != len(wanted) {
		return nil, fmt.Errorf("relay returned %d shares for %d handles", len(resp.Shares), len(wanted))
	}

	out := make(map[string]uint64, len(resp.Shares))
	for _, s := range resp.Shares {
		if !wanted[s.Handle] {
			return nil, fmt.Errorf("unexpected share for %s", s.Handle)
		}
		if _, dup := out[s.Handle]; dup {
			return nil, fmt.Errorf("duplicate share for %s", s.Handle)
		}
		ct, es, proof, err := s.decode()
		if err != nil {
			return nil, fmt.Errorf("share %s: %w", s.Handle, err)
		}
		if ledger != nil {
			onChain, err := ledger.Ciphertext(ctx, s.Handle)
			if err != nil {
				return nil, err
			}
			if !bytes.Equal(onChain.C1.Bytes(), ct.C1.Bytes()) || !bytes.Equal(onChain.C2.Bytes(), ct.C2.Bytes()) {
				return nil, fmt.Errorf("share %s: ciphertext differs from ledger", s.Handle)
			}
		}
		ok, err := engcrypto.VerifyShare(networkKey, ct, user.Public, es, proof)
		if err != nil {
			return nil, fmt.Errorf("share %s: %w", s.Handle, err)
		}
		if !ok {
			return nil, fmt.Errorf("share %s: invalid proof", s.Handle)
		}
		v, err := dec.Decode(engcrypto.OpenShare(user.Secret, ct, es))
		if err != nil {
			return nil, fmt.Errorf("share %s: %w", s.Handle, err)
		}
		out[s.Handle] = v
	}
	return out, nil
}

func (s Share) decode() (engcrypto.Ciphertext, engcrypto.EncryptedShare, engcrypto.ShareProof, error) {
	var (
		ct    engcrypto.Ciphertext
		es    engcrypto.EncryptedShare
		proof engcrypto.ShareProof
	)
	raw := make([][]byte, 5)
	for i, field := range []string{s.C1, s.C2, s.A, s.B, s.Proof} {
		b, err := engcrypto.HexToBytes(field)
		if err != nil {
			return ct, es, proof, err
		}
		raw[i] = b
	}
	ct, err := engcrypto.CiphertextFromParts(raw[0], raw[1])
	if err != nil {
		return ct, es, proof, err
	}
	if es.A, err = engcrypto.PointFromBytesCanonical(raw[2]); err != nil {
		return ct, es, proof, err
	}
	if es.B, err = engcrypto.PointFromBytesCanonical(raw[3]); err != nil {
		return ct, es, proof, err
	}
	proof, err = engcrypto.DecodeShareProof(raw[4])
	return ct, es, proof, err
}
