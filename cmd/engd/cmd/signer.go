package cmd

import (
	"crypto/ed25519"
	"time"

	"github.com/spf13/cobra"

	"encryptednumbers/internal/codec"
)

type signer struct {
	priv ed25519.PrivateKey
	addr string

	nonce uint64
}

func newSigner(cmd *cobra.Command) (*signer, error) {
	home, _ := cmd.Flags().GetString(flagHome)
	name, _ := cmd.Flags().GetString(flagFrom)
	priv, err := readAccountKey(home, name)
	if err != nil {
		return nil, err
	}
	return &signer{priv: priv, addr: codec.AddressFromPubKey(priv.Public().(ed25519.PublicKey))}, nil
}

func (s *signer) pub() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// nextNonce returns --nonce (or the current unix time in nanoseconds) on the
// first call and increments from there.
func (s *signer) nextNonce(cmd *cobra.Command) uint64 {
	if s.nonce == 0 {
		s.nonce, _ = cmd.Flags().GetUint64("nonce")
		if s.nonce == 0 {
			s.nonce = uint64(time.Now().UnixNano())
		}
		return s.nonce
	}
	s.nonce++
	return s.nonce
}
