package rng

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/engcrypto"
)

const fingerprintDomain = "eng/v1/rng/ticket"

// Ticket is one encrypted uniform draw, produced off-chain by an entropy
// provider and verified on submission.
type Ticket struct {
	Low   uint32
	High  uint32
	CT    engcrypto.Ciphertext
	Proof RangeProof
}

// NewTicket samples v uniformly from [low, high], encrypts it under pk and
// proves the range for submission by provider. The sampled value is returned
// for the provider's own bookkeeping only.
func NewTicket(pk engcrypto.Point, provider string, low, high uint32, src io.Reader) (Ticket, uint32, error) {
	if _, err := rangeWidth(low, high); err != nil {
		return Ticket{}, 0, err
	}
	v, err := Uniform(src, low, high)
	if err != nil {
		return Ticket{}, 0, err
	}
	rho, err := engcrypto.RandomScalar(src)
	if err != nil {
		return Ticket{}, 0, err
	}
	ct, err := engcrypto.EncryptValue(pk, uint64(v), rho)
	if err != nil {
		return Ticket{}, 0, err
	}
	proof, err := ProveRange(pk, provider, ct, low, high, v, rho, src)
	if err != nil {
		return Ticket{}, 0, err
	}
	return Ticket{Low: low, High: high, CT: ct, Proof: proof}, v, nil
}

func (t Ticket) Verify(pk engcrypto.Point, provider string) error {
	ok, err := VerifyRange(pk, provider, t.CT, t.Low, t.High, t.Proof)
	if err != nil {
		return ErrInvalidTicket.Wrap(err.Error())
	}
	if !ok {
		return ErrInvalidTicket.Wrap("range proof rejected")
	}
	return nil
}

func (t Ticket) ToCodec() codec.EntropyTicket {
	return codec.EntropyTicket{
		Low:   t.Low,
		High:  t.High,
		C1:    t.CT.C1.Bytes(),
		C2:    t.CT.C2.Bytes(),
		Proof: EncodeRangeProof(t.Proof),
	}
}

// Fingerprint identifies a ticket by its ciphertext. Two tickets with the
// same fingerprint would decrypt to the same draw.
func Fingerprint(c1, c2 []byte) string {
	h := blake3.New()
	_, _ = h.Write([]byte(fingerprintDomain))
	_, _ = h.Write(c1)
	_, _ = h.Write(c2)
	return hex.EncodeToString(h.Sum(nil))
}

func TicketFromCodec(c codec.EntropyTicket) (Ticket, error) {
	ct, err := engcrypto.CiphertextFromParts(c.C1, c.C2)
	if err != nil {
		return Ticket{}, ErrInvalidTicket.Wrap(err.Error())
	}
	proof, err := DecodeRangeProof(c.Proof)
	if err != nil {
		return Ticket{}, ErrInvalidTicket.Wrap(err.Error())
	}
	return Ticket{Low: c.Low, High: c.High, CT: ct, Proof: proof}, nil
}
