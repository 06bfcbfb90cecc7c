package app

import (
	"sort"

	abci "github.com/cometbft/cometbft/abci/types"

	"encryptednumbers/internal/confidential"
)

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{newEvent(typ, attrs)},
	}
}

func newEvent(typ string, attrs map[string]string) abci.Event {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return ev
}

// aclEvents emits one AclGranted per grant, in grant order.
func aclEvents(grants []confidential.Grant) []abci.Event {
	out := make([]abci.Event, 0, len(grants))
	for _, g := range grants {
		out = append(out, newEvent("AclGranted", map[string]string{
			"handle":    g.Handle.String(),
			"principal": g.Principal,
		}))
	}
	return out
}
