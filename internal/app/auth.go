package app

import (
	"crypto/ed25519"
	"strconv"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/state"
)

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return ErrUnauthorized.Wrap("missing tx.nonce")
	}
	if env.Signer == "" {
		return ErrUnauthorized.Wrap("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return ErrUnauthorized.Wrap("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return ErrUnauthorized.Wrapf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

func verifyEnvelope(pub ed25519.PublicKey, env codec.TxEnvelope) error {
	msg := codec.SignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(pub, msg, env.Sig) {
		return ErrUnauthorized.Wrap("invalid signature")
	}
	return nil
}

func requireRegisterAccountAuth(st *state.State, env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) error {
	if msg.Account == "" {
		return ErrInvalidTx.Wrap("missing account")
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return ErrInvalidTx.Wrapf("pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != msg.Account {
		return ErrUnauthorized.Wrapf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	pub := ed25519.PublicKey(msg.PubKey)
	if addr := codec.AddressFromPubKey(pub); addr != msg.Account {
		return ErrUnauthorized.Wrapf("account %q is not derived from pubKey (want %q)", msg.Account, addr)
	}
	if existing, ok := st.AccountKeys[msg.Account]; ok && !pub.Equal(ed25519.PublicKey(existing)) {
		return ErrUnauthorized.Wrapf("account %q already registered with a different key", msg.Account)
	}
	return verifyEnvelope(pub, env)
}

func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if account == "" {
		return ErrInvalidTx.Wrap("missing account")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return ErrUnauthorized.Wrapf("tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return ErrUnauthorized.Wrapf("account %q missing pubKey (auth/register_account required)", account)
	}
	return verifyEnvelope(ed25519.PublicKey(pub), env)
}

// consumeNonce enforces a strictly increasing per-signer nonce. It runs after
// signature checks so only the key holder can advance it.
func consumeNonce(st *state.State, env codec.TxEnvelope) error {
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return ErrInvalidNonce.Wrapf("%q", env.Nonce)
	}
	if last, ok := st.NonceMax[env.Signer]; ok && n <= last {
		return ErrReplayedNonce.Wrapf("signer=%s nonce=%d last=%d", env.Signer, n, last)
	}
	st.NonceMax[env.Signer] = n
	return nil
}
