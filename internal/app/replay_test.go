package app

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/state"
)

func TestReplayProtection_AccountSigned(t *testing.T) {
	c := newTestChain(t, &state.Params{NumberLow: 1, NumberHigh: 4})
	alice := newTestAccount("alice")
	c.register(t, alice)
	c.fillEntropy(t, 6)

	tx := alice.signed(t, codec.TxJoin, codec.GameJoinTx{Player: alice.addr})
	mustOk(t, c.deliver(tx))

	res := c.deliver(tx)
	if res.Code == 0 {
		t.Fatalf("expected replay to be rejected")
	}
	if !strings.Contains(res.Log, "replayed tx.nonce") {
		t.Fatalf("expected replay log to mention nonce, got %q", res.Log)
	}
}

func TestReplayProtection_LowerNonceRejected(t *testing.T) {
	c := newTestChain(t, nil)
	alice := newTestAccount("alice")

	alice.nonce = 10
	c.register(t, alice)

	tx, err := codec.NewSignedTx(alice.priv, codec.TxRegisterAccount, codec.AuthRegisterAccountTx{
		Account: alice.addr,
		PubKey:  alice.pub,
	}, "5", alice.addr)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res := c.deliver(tx)
	if !strings.Contains(res.Log, "replayed tx.nonce") {
		t.Fatalf("expected lower nonce to be rejected, got code=%d log=%q", res.Code, res.Log)
	}
}

func TestReplayProtection_RejectsNonNumericNonce(t *testing.T) {
	c := newTestChain(t, nil)
	pub, priv := testEd25519Key("alice")
	addr := codec.AddressFromPubKey(pub)
	value := map[string]any{"account": addr, "pubKey": []byte(pub)}
	valueBytes := mustMarshal(t, value)

	nonce := "not-a-number"
	msg := codec.SignBytes(codec.TxRegisterAccount, valueBytes, nonce, addr)
	sig := ed25519.Sign(priv, msg)
	env := codec.TxEnvelope{
		Type:   codec.TxRegisterAccount,
		Value:  valueBytes,
		Nonce:  nonce,
		Signer: addr,
		Sig:    sig,
	}

	res := c.deliver(mustMarshal(t, env))
	if res.Code == 0 {
		t.Fatalf("expected non-numeric nonce to be rejected")
	}
	if !strings.Contains(res.Log, "invalid tx.nonce") {
		t.Fatalf("expected log to mention invalid tx.nonce, got %q", res.Log)
	}
}

func TestReplayProtection_FailedTxDoesNotConsumeNonce(t *testing.T) {
	c := newTestChain(t, &state.Params{NumberLow: 1, NumberHigh: 4})
	alice := newTestAccount("alice")
	c.register(t, alice)

	tx := alice.signed(t, codec.TxJoin, codec.GameJoinTx{Player: alice.addr})
	if res := c.deliver(tx); res.Code == 0 {
		t.Fatalf("expected join to fail with an empty pool")
	}

	c.fillEntropy(t, 3)
	mustOk(t, c.deliver(tx))
}
