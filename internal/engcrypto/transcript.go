package engcrypto

import (
	"crypto/sha512"
	"fmt"
)

var transcriptPrefix = []byte("ENGv1|transcript|")

// Transcript is a Fiat-Shamir transcript.
//
// It keeps the raw transcript bytes instead of a running hash since sha512
// state cannot be cloned.
type Transcript struct {
	state []byte
}

func NewTranscript(domainSep string) *Transcript {
	dst := []byte(domainSep)
	st := make([]byte, 0, len(transcriptPrefix)+4+len(dst))
	st = append(st, transcriptPrefix...)
	st = append(st, u32le(uint32(len(dst)))...)
	st = append(st, dst...)
	return &Transcript{state: st}
}

func (t *Transcript) AppendMessage(label string, msg []byte) error {
	if t == nil {
		return fmt.Errorf("transcript: nil receiver")
	}
	if msg == nil {
		return fmt.Errorf("transcript: nil msg")
	}
	lb := []byte(label)
	t.state = append(t.state, "msg"...)
	t.state = append(t.state, u32le(uint32(len(lb)))...)
	t.state = append(t.state, lb...)
	t.state = append(t.state, u32le(uint32(len(msg)))...)
	t.state = append(t.state, msg...)
	return nil
}

// AppendPoints appends each point under "<label>.<i>".
func (t *Transcript) AppendPoints(label string, pts ...Point) error {
	for i, p := range pts {
		if err := t.AppendMessage(fmt.Sprintf("%s.%d", label, i), p.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transcript) ChallengeScalar(label string) (Scalar, error) {
	if t == nil {
		return Scalar{}, fmt.Errorf("transcript: nil receiver")
	}
	lb := []byte(label)
	h := sha512.New()
	h.Write(t.state)
	h.Write([]byte("challenge"))
	h.Write(u32le(uint32(len(lb))))
	h.Write(lb)
	return ScalarFromUniformBytes(h.Sum(nil))
}
