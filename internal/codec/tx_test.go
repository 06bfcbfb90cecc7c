package codec

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"testing"
)

func TestDecodeTxEnvelope_OK(t *testing.T) {
	b, err := json.Marshal(map[string]any{
		"type":  TxClaimPoints,
		"value": map[string]any{"player": "alice", "index": 2},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	env, err := DecodeTxEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeTxEnvelope: %v", err)
	}
	if env.Type != TxClaimPoints {
		t.Fatalf("unexpected type: %q", env.Type)
	}

	var msg GameClaimPointsTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if msg.Player != "alice" || msg.Index != 2 {
		t.Fatalf("unexpected value: %+v", msg)
	}
}

func TestDecodeTxEnvelope_MissingType(t *testing.T) {
	b, err := json.Marshal(map[string]any{
		"value": map[string]any{"x": 1},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeTxEnvelope(b); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodeTxEnvelope_InvalidJSON(t *testing.T) {
	if _, err := DecodeTxEnvelope([]byte("{not json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewSignedTx_VerifiesAgainstSignBytes(t *testing.T) {
	seed := sha256.Sum256([]byte("codec-test"))
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	addr := AddressFromPubKey(pub)

	b, err := NewSignedTx(priv, TxJoin, GameJoinTx{Player: addr}, "1", addr)
	if err != nil {
		t.Fatalf("NewSignedTx: %v", err)
	}
	env, err := DecodeTxEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeTxEnvelope: %v", err)
	}
	if !ed25519.Verify(pub, SignBytes(env.Type, env.Value, env.Nonce, env.Signer), env.Sig) {
		t.Fatalf("signature does not verify")
	}
	// The nonce is bound into the signature.
	if ed25519.Verify(pub, SignBytes(env.Type, env.Value, "2", env.Signer), env.Sig) {
		t.Fatalf("signature verified under a different nonce")
	}
}

func TestAddressFromPubKey(t *testing.T) {
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	a := AddressFromPubKey(pub)
	if len(a) != 40 {
		t.Fatalf("expected 40 hex chars, got %d", len(a))
	}
	pub[0] = 1
	if AddressFromPubKey(pub) == a {
		t.Fatalf("expected different address for different key")
	}
}
