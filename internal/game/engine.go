// Package game implements the player state machine on top of the
// confidential store: join draws three encrypted numbers and an encrypted
// zero score, claim adds one of the numbers into the score.
package game

import (
	"encryptednumbers/internal/confidential"
	"encryptednumbers/internal/rng"
	"encryptednumbers/internal/state"
)

// NumbersPerPlayer is the number of encrypted draws handed out on join.
const NumbersPerPlayer = 3

type Status struct {
	Joined     bool `json:"joined"`
	HasClaimed bool `json:"hasClaimed"`
}

// Engine mutates the state it was built over. The caller is responsible
// for running each invocation on a staged copy and discarding it on error.
type Engine struct {
	st    *state.State
	store *confidential.Store
	gen   *rng.Generator
}

func NewEngine(st *state.State, store *confidential.Store, gen *rng.Generator) *Engine {
	return &Engine{st: st, store: store, gen: gen}
}

// JoinResult lists the handles created by a successful Join.
type JoinResult struct {
	Numbers [NumbersPerPlayer]confidential.Handle
	Score   confidential.Handle
}

func (e *Engine) Join(player string, height int64) (JoinResult, error) {
	if player == "" || player == confidential.EnginePrincipal {
		return JoinResult{}, ErrInvalidIdentity.Wrapf("player %q", player)
	}
	if p := e.st.Players[player]; p != nil && p.Joined {
		return JoinResult{}, ErrAlreadyJoined.Wrapf("player %s", player)
	}
	low, high := e.st.Params.NumberLow, e.st.Params.NumberHigh
	if avail := e.gen.Available(low, high); avail < NumbersPerPlayer {
		return JoinResult{}, ErrEntropyExhausted.Wrapf("%d tickets for [%d, %d], need %d", avail, low, high, NumbersPerPlayer)
	}

	var res JoinResult
	for i := range res.Numbers {
		h, err := e.gen.Generate(low, high, height)
		if err != nil {
			return JoinResult{}, err
		}
		res.Numbers[i] = h
	}
	score, err := e.store.TrivialZero(height, []byte(player))
	if err != nil {
		return JoinResult{}, err
	}
	res.Score = score

	for _, h := range append(res.Numbers[:], res.Score) {
		if err := e.store.Authorize(h, player, height); err != nil {
			return JoinResult{}, err
		}
	}

	p := &state.Player{Joined: true, Score: string(res.Score), JoinedAt: height}
	for i, h := range res.Numbers {
		p.Numbers[i] = string(h)
	}
	e.st.Players[player] = p
	return res, nil
}

// Claim adds numbers[index] into the player's score and returns the new
// score handle.
func (e *Engine) Claim(player string, index uint32, height int64) (confidential.Handle, error) {
	p := e.st.Players[player]
	if p == nil || !p.Joined {
		return "", ErrNotJoined.Wrapf("player %s", player)
	}
	if p.HasClaimed {
		return "", ErrAlreadyClaimed.Wrapf("player %s", player)
	}
	var candidates [NumbersPerPlayer]confidential.Handle
	for i, h := range p.Numbers {
		candidates[i] = confidential.Handle(h)
	}
	score, err := Accumulate(e.store, confidential.Handle(p.Score), candidates, index, height)
	if err != nil {
		return "", err
	}
	if err := e.store.Authorize(score, player, height); err != nil {
		return "", err
	}

	p.Score = string(score)
	p.HasClaimed = true
	p.ClaimedAt = height
	return score, nil
}

// Accumulate returns a new handle for score + candidates[index]. The index
// is validated before any ciphertext is touched.
func Accumulate(store *confidential.Store, score confidential.Handle, candidates [NumbersPerPlayer]confidential.Handle, index uint32, height int64) (confidential.Handle, error) {
	if index >= NumbersPerPlayer {
		return "", ErrInvalidIndex.Wrapf("index %d not in [0, %d]", index, NumbersPerPlayer-1)
	}
	return store.Combine(confidential.OpAdd, score, candidates[index], height)
}

func (e *Engine) Status(player string) Status {
	p := e.st.Players[player]
	if p == nil {
		return Status{}
	}
	return Status{Joined: p.Joined, HasClaimed: p.HasClaimed}
}

// Numbers returns empty handles for a player that has not joined.
func (e *Engine) Numbers(player string) [NumbersPerPlayer]confidential.Handle {
	var out [NumbersPerPlayer]confidential.Handle
	p := e.st.Players[player]
	if p == nil || !p.Joined {
		return out
	}
	for i, h := range p.Numbers {
		out[i] = confidential.Handle(h)
	}
	return out
}

func (e *Engine) Score(player string) confidential.Handle {
	p := e.st.Players[player]
	if p == nil || !p.Joined {
		return ""
	}
	return confidential.Handle(p.Score)
}
