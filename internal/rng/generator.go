// Package rng implements the bounded random generator. Draws come from a
// pool of provider-submitted tickets, each an encryption of a uniform value
// with a proof that the value is in range, so the engine never sees a
// plaintext.
package rng

import (
	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/confidential"
	"encryptednumbers/internal/state"
)

const (
	// MaxTicketsPerSubmit bounds a single entropy/submit transaction.
	MaxTicketsPerSubmit = 64

	// MaxSubmitBytes bounds the signed entropy/submit tx a provider builds.
	// CometBFT's default mempool limit is 1 MiB and its RPC server refuses
	// bodies over 1,000,000 bytes, which a base64 encoded tx of this size
	// stays under.
	MaxSubmitBytes = 512 << 10

	// submitOverhead covers the envelope, signature and message fields.
	submitOverhead = 1024
)

// EncodedTicketLen is the JSON size of one codec.EntropyTicket whose range
// has n values.
func EncodedTicketLen(n int) int {
	b64 := func(l int) int { return (l + 2) / 3 * 4 }
	return b64(EncodedRangeProofLen(n)) + 2*b64(32) + 96
}

// TicketsPerSubmit is how many [low, high] tickets fit one entropy/submit tx.
func TicketsPerSubmit(low, high uint32) (int, error) {
	n, err := rangeWidth(low, high)
	if err != nil {
		return 0, err
	}
	per := (MaxSubmitBytes - submitOverhead) / (EncodedTicketLen(n) + 1)
	return max(1, min(per, MaxTicketsPerSubmit)), nil
}

type Generator struct {
	st    *state.State
	store *confidential.Store
}

func NewGenerator(st *state.State, store *confidential.Store) *Generator {
	return &Generator{st: st, store: store}
}

// Submit verifies every ticket and appends them to the pool. Nothing is
// added unless all tickets verify and none repeats a ciphertext already
// accepted, whether still pooled or spent.
func (g *Generator) Submit(provider string, tickets []codec.EntropyTicket, height int64) (int, error) {
	if !g.st.IsProvider(provider) {
		return 0, ErrNotProvider.Wrapf("account %s", provider)
	}
	if len(tickets) == 0 {
		return 0, ErrInvalidTicket.Wrap("no tickets")
	}
	if len(tickets) > MaxTicketsPerSubmit {
		return 0, ErrInvalidTicket.Wrapf("%d tickets exceeds limit %d", len(tickets), MaxTicketsPerSubmit)
	}
	pk, err := g.store.NetworkKey()
	if err != nil {
		return 0, err
	}

	es := g.st.Entropy
	accepted := make([]state.Ticket, 0, len(tickets))
	batch := make(map[string]bool, len(tickets))
	for i, raw := range tickets {
		t, err := TicketFromCodec(raw)
		if err != nil {
			return 0, ErrInvalidTicket.Wrapf("ticket %d: %v", i, err)
		}
		fp := Fingerprint(t.CT.C1.Bytes(), t.CT.C2.Bytes())
		if batch[fp] {
			return 0, ErrDuplicateTicket.Wrapf("ticket %d repeats an earlier ticket in the submission", i)
		}
		if rec, ok := es.Seen[fp]; ok {
			return 0, ErrDuplicateTicket.Wrapf("ticket %d repeats ticket %d", i, rec.ID)
		}
		batch[fp] = true
		if err := t.Verify(pk, provider); err != nil {
			return 0, ErrInvalidTicket.Wrapf("ticket %d: %v", i, err)
		}
		accepted = append(accepted, state.Ticket{
			Provider:    provider,
			Low:         t.Low,
			High:        t.High,
			C1:          t.CT.C1.Bytes(),
			C2:          t.CT.C2.Bytes(),
			SubmittedAt: height,
		})
	}

	for i := range accepted {
		accepted[i].ID = es.NextTicketID
		es.NextTicketID++
		es.Seen[Fingerprint(accepted[i].C1, accepted[i].C2)] = &state.TicketRecord{ID: accepted[i].ID}
	}
	es.Pool = append(es.Pool, accepted...)
	return len(accepted), nil
}

// Available counts unspent tickets for exactly [low, high].
func (g *Generator) Available(low, high uint32) int {
	n := 0
	for _, t := range g.st.Entropy.Pool {
		if t.Low == low && t.High == high {
			n++
		}
	}
	return n
}

func (g *Generator) PoolSize() int {
	return len(g.st.Entropy.Pool)
}

// Generate consumes the oldest ticket for [low, high], returns a fresh
// handle for its ciphertext and records the ticket as spent. Tickets are
// single use.
func (g *Generator) Generate(low, high uint32, height int64) (confidential.Handle, error) {
	if _, err := rangeWidth(low, high); err != nil {
		return "", err
	}
	es := g.st.Entropy
	idx := -1
	for i, t := range es.Pool {
		if t.Low == low && t.High == high {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", ErrPoolExhausted.Wrapf("no ticket for [%d, %d]", low, high)
	}
	t := es.Pool[idx]

	h, err := g.store.PutRaw(t.C1, t.C2, height)
	if err != nil {
		return "", err
	}

	pool := make([]state.Ticket, 0, len(es.Pool)-1)
	pool = append(pool, es.Pool[:idx]...)
	pool = append(pool, es.Pool[idx+1:]...)
	es.Pool = pool
	es.Spent++
	es.Seen[Fingerprint(t.C1, t.C2)] = &state.TicketRecord{ID: t.ID, SpentAt: height}
	return h, nil
}
