package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	DefaultNumberLow  uint32 = 1
	DefaultNumberHigh uint32 = 100
)

type State struct {
	Height  int64  `json:"height"`
	ChainID string `json:"chainId,omitempty"`

	Params     Params `json:"params"`
	NetworkKey []byte `json:"networkKey,omitempty"` // ristretto255 point (32 bytes)

	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce

	NextHandleSeq uint64                      `json:"nextHandleSeq"`
	Ciphertexts   map[string]*Ciphertext      `json:"ciphertexts"`
	ACL           map[string]map[string]int64 `json:"acl"` // handle -> principal -> grant height

	Players map[string]*Player `json:"players"`
	Entropy *EntropyState      `json:"entropy"`
}

type Params struct {
	NumberLow  uint32 `json:"numberLow"`
	NumberHigh uint32 `json:"numberHigh"`
}

// Ciphertext is a stored ElGamal ciphertext. It is never modified after
// creation.
type Ciphertext struct {
	C1        []byte `json:"c1"`
	C2        []byte `json:"c2"`
	CreatedAt int64  `json:"createdAt"`
}

type Player struct {
	Joined     bool      `json:"joined"`
	HasClaimed bool      `json:"hasClaimed"`
	Numbers    [3]string `json:"numbers"`
	Score      string    `json:"score"`
	JoinedAt   int64     `json:"joinedAt,omitempty"`
	ClaimedAt  int64     `json:"claimedAt,omitempty"`
}

type EntropyState struct {
	Providers    []string `json:"providers"`
	NextTicketID uint64   `json:"nextTicketId"`
	Pool         []Ticket `json:"pool"`
	Spent        uint64   `json:"spent"`

	// Seen holds every ticket ever accepted, pooled or spent, keyed by the
	// fingerprint of its ciphertext. A ciphertext is accepted at most once.
	Seen map[string]*TicketRecord `json:"seen"`
}

// TicketRecord tracks one accepted ticket. SpentAt is zero while the ticket
// is still in the pool.
type TicketRecord struct {
	ID      uint64 `json:"id"`
	SpentAt int64  `json:"spentAt,omitempty"`
}

// Ticket is a verified encryption of a uniform value in [Low, High]
// waiting to be drawn.
type Ticket struct {
	ID          uint64 `json:"id"`
	Provider    string `json:"provider"`
	Low         uint32 `json:"low"`
	High        uint32 `json:"high"`
	C1          []byte `json:"c1"`
	C2          []byte `json:"c2"`
	SubmittedAt int64  `json:"submittedAt"`
}

func DefaultParams() Params {
	return Params{NumberLow: DefaultNumberLow, NumberHigh: DefaultNumberHigh}
}

func NewState() *State {
	st := &State{Params: DefaultParams()}
	st.normalize()
	return st
}

func (s *State) normalize() {
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.Ciphertexts == nil {
		s.Ciphertexts = map[string]*Ciphertext{}
	}
	if s.ACL == nil {
		s.ACL = map[string]map[string]int64{}
	}
	if s.Players == nil {
		s.Players = map[string]*Player{}
	}
	if s.Entropy == nil {
		s.Entropy = &EntropyState{}
	}
	if s.Entropy.NextTicketID == 0 {
		s.Entropy.NextTicketID = 1
	}
	if s.Entropy.Seen == nil {
		s.Entropy.Seen = map[string]*TicketRecord{}
	}
}

// Decode parses a JSON-encoded state and fills in empty collections.
// Params default only when the document has none.
func Decode(b []byte) (*State, error) {
	st := State{Params: DefaultParams()}
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return &st, nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	out, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("state clone: %w", err)
	}
	return out, nil
}

func (s *State) IsProvider(addr string) bool {
	for _, p := range s.Entropy.Providers {
		if p == addr {
			return true
		}
	}
	return false
}

func (s *State) AppHash() []byte {
	// encoding/json sorts map keys, but nested maps and pointer fields are
	// normalized into sorted slices so the hash does not depend on that.
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type ciphertextKV struct {
		Handle string      `json:"handle"`
		CT     *Ciphertext `json:"ct"`
	}
	type grantKV struct {
		Handle    string `json:"handle"`
		Principal string `json:"principal"`
		Height    int64  `json:"height"`
	}
	type playerKV struct {
		Addr   string  `json:"addr"`
		Player *Player `json:"player"`
	}

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	cts := make([]ciphertextKV, 0, len(s.Ciphertexts))
	for h, ct := range s.Ciphertexts {
		cts = append(cts, ciphertextKV{Handle: h, CT: ct})
	}
	sort.Slice(cts, func(i, j int) bool { return cts[i].Handle < cts[j].Handle })

	grants := make([]grantKV, 0, len(s.ACL))
	for h, principals := range s.ACL {
		for p, height := range principals {
			grants = append(grants, grantKV{Handle: h, Principal: p, Height: height})
		}
	}
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].Handle != grants[j].Handle {
			return grants[i].Handle < grants[j].Handle
		}
		return grants[i].Principal < grants[j].Principal
	})

	players := make([]playerKV, 0, len(s.Players))
	for addr, p := range s.Players {
		players = append(players, playerKV{Addr: addr, Player: p})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Addr < players[j].Addr })

	normalized := struct {
		Height        int64          `json:"height"`
		ChainID       string         `json:"chainId"`
		Params        Params         `json:"params"`
		NetworkKey    []byte         `json:"networkKey,omitempty"`
		AccountKeys   []accountKeyKV `json:"accountKeys"`
		NonceMax      []nonceKV      `json:"nonceMax"`
		NextHandleSeq uint64         `json:"nextHandleSeq"`
		Ciphertexts   []ciphertextKV `json:"ciphertexts"`
		ACL           []grantKV      `json:"acl"`
		Players       []playerKV     `json:"players"`
		Entropy       *EntropyState  `json:"entropy"`
	}{
		Height:        s.Height,
		ChainID:       s.ChainID,
		Params:        s.Params,
		NetworkKey:    s.NetworkKey,
		AccountKeys:   accountKeys,
		NonceMax:      nonces,
		NextHandleSeq: s.NextHandleSeq,
		Ciphertexts:   cts,
		ACL:           grants,
		Players:       players,
		Entropy:       s.Entropy,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}
