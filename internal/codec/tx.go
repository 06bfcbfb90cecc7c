package codec

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	TxRegisterAccount = "auth/register_account"
	TxJoin            = "game/join"
	TxClaimPoints     = "game/claim_points"
	TxEntropySubmit   = "entropy/submit"
)

// TxEnvelope is the transaction container.
//
// CometBFT transactions are opaque bytes; txs are JSON-encoded envelopes
// routed by Type.
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Nonce must increase per signer and is covered by Sig.
	// Sig is an Ed25519 signature over SignBytes(type, value, nonce, signer).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

const txAuthDomainV0 = "eng/tx/v0"

// SignBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
func SignBytes(typ string, value []byte, nonce string, signer string) []byte {
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, txAuthDomainV0...)
	out = append(out, 0)
	out = append(out, typ...)
	out = append(out, 0)
	out = append(out, nonce...)
	out = append(out, 0)
	out = append(out, signer...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

// NewSignedTx builds and encodes a signed envelope for msg.
func NewSignedTx(priv ed25519.PrivateKey, typ string, msg any, nonce string, signer string) ([]byte, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", typ, err)
	}
	env := TxEnvelope{
		Type:   typ,
		Value:  value,
		Nonce:  nonce,
		Signer: signer,
		Sig:    ed25519.Sign(priv, SignBytes(typ, value, nonce, signer)),
	}
	return json.Marshal(env)
}

// AddressFromPubKey derives the account address bound to an Ed25519 key:
// hex(sha256(pubKey)[:20]).
func AddressFromPubKey(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:20])
}

// ---- Auth ----

type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Game ----

type GameJoinTx struct {
	Player string `json:"player"`
}

type GameClaimPointsTx struct {
	Player string `json:"player"`
	Index  uint32 `json:"index"`
}

// ---- Entropy ----

type EntropySubmitTx struct {
	Provider string          `json:"provider"`
	Tickets  []EntropyTicket `json:"tickets"`
}

type EntropyTicket struct {
	Low   uint32 `json:"low"`
	High  uint32 `json:"high"`
	C1    []byte `json:"c1"`    // base64 (32 bytes)
	C2    []byte `json:"c2"`    // base64 (32 bytes)
	Proof []byte `json:"proof"` // base64, range OR-proof
}
