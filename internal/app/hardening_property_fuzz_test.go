package app

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"encryptednumbers/internal/state"
)

func FuzzDeliverTx_RejectsGarbage(f *testing.F) {
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"type":"game/join","value":{"player":"x"}}`))
	f.Add([]byte(`{"type":"game/claim_points","value":{"player":"x","index":1},"nonce":"1","signer":"x","sig":"AA=="}`))
	f.Add([]byte(`{"type":"entropy/submit","value":{"provider":"x","tickets":[{"low":1,"high":2}]}}`))

	a := newTestApp(f)
	f.Fuzz(func(t *testing.T, tx []byte) {
		before := a.st.AppHash()
		res := a.deliverTx(tx, 1)
		if res.Code == 0 {
			t.Fatalf("unsigned input accepted: %q", tx)
		}
		if !bytes.Equal(before, a.st.AppHash()) {
			t.Fatalf("rejected tx changed state: %q", tx)
		}
	})
}

func TestProperty_ClaimedImpliesJoined(t *testing.T) {
	const (
		players = 6
		steps   = 60
	)
	c := newTestChain(t, &state.Params{NumberLow: 1, NumberHigh: 2})
	c.fillEntropy(t, 3*players)

	accounts := make([]*testAccount, players)
	for i := range accounts {
		accounts[i] = newTestAccount(fmt.Sprintf("player-%d", i))
		c.register(t, accounts[i])
	}

	r := rand.New(rand.NewSource(1337))
	claims := map[string]int{}
	for step := 0; step < steps; step++ {
		acc := accounts[r.Intn(players)]
		if r.Intn(2) == 0 {
			c.join(t, acc)
		} else if res := c.claim(t, acc, uint32(r.Intn(4))); res.Code == 0 {
			claims[acc.addr]++
		}
		c.height++

		for addr, p := range c.app.st.Players {
			if p.HasClaimed && !p.Joined {
				t.Fatalf("step %d: %s claimed without joining", step, addr)
			}
			if claims[addr] > 1 {
				t.Fatalf("step %d: %s claimed %d times", step, addr, claims[addr])
			}
		}
	}
	for _, acc := range accounts {
		if claims[acc.addr] == 1 && !c.app.st.Players[acc.addr].HasClaimed {
			t.Fatalf("%s has a successful claim but is not marked claimed", acc.addr)
		}
	}
}
