package app

import (
	"encoding/json"

	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/rng"
	"encryptednumbers/internal/state"
)

// Genesis is the JSON document carried in InitChain.AppStateBytes.
type Genesis struct {
	// NetworkKey is the hex encoded ristretto255 public key every ciphertext
	// is encrypted under. The matching secret lives with the decryption relay.
	NetworkKey       string        `json:"networkKey"`
	EntropyProviders []string      `json:"entropyProviders"`
	Params           *state.Params `json:"params,omitempty"`
}

func ParseGenesis(b []byte) (Genesis, error) {
	var g Genesis
	if err := json.Unmarshal(b, &g); err != nil {
		return Genesis{}, ErrInvalidGenesis.Wrapf("decode: %v", err)
	}
	return g, g.Validate()
}

func (g Genesis) Validate() error {
	raw, err := engcrypto.HexToBytes(g.NetworkKey)
	if err != nil {
		return ErrInvalidGenesis.Wrapf("networkKey: %v", err)
	}
	pk, err := engcrypto.PointFromBytesCanonical(raw)
	if err != nil {
		return ErrInvalidGenesis.Wrapf("networkKey: %v", err)
	}
	if engcrypto.PointEq(pk, engcrypto.PointZero()) {
		return ErrInvalidGenesis.Wrap("networkKey is the identity")
	}
	seen := map[string]bool{}
	for _, p := range g.EntropyProviders {
		if p == "" {
			return ErrInvalidGenesis.Wrap("empty entropy provider")
		}
		if seen[p] {
			return ErrInvalidGenesis.Wrapf("duplicate entropy provider %q", p)
		}
		seen[p] = true
	}
	if g.Params != nil {
		if g.Params.NumberLow == 0 {
			return ErrInvalidGenesis.Wrap("numberLow must be at least 1")
		}
		if g.Params.NumberLow > g.Params.NumberHigh {
			return ErrInvalidGenesis.Wrapf("numberLow %d > numberHigh %d", g.Params.NumberLow, g.Params.NumberHigh)
		}
		if uint64(g.Params.NumberHigh)-uint64(g.Params.NumberLow)+1 > rng.MaxTicketRange {
			return ErrInvalidGenesis.Wrapf("number range wider than %d", rng.MaxTicketRange)
		}
	}
	return nil
}

// Apply writes the genesis values into a fresh state.
func (g Genesis) Apply(st *state.State, chainID string) error {
	raw, err := engcrypto.HexToBytes(g.NetworkKey)
	if err != nil {
		return ErrInvalidGenesis.Wrapf("networkKey: %v", err)
	}
	st.ChainID = chainID
	st.NetworkKey = raw
	st.Entropy.Providers = append([]string(nil), g.EntropyProviders...)
	if g.Params != nil {
		st.Params = *g.Params
	}
	return nil
}
