package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"path/filepath"
	"strings"
	"testing"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/metrics"
	"encryptednumbers/internal/state"
)

func TestFinalizeCommit_PersistsAcrossRestart(t *testing.T) {
	home := filepath.Join(t.TempDir(), "data")
	store, err := state.OpenStore(state.BackendGoLevelDB, home)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	m := metrics.New()
	a, err := New(store, log.NewNopLogger(), m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, pk, err := engcrypto.GenerateKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	alice := newTestAccount("alice")
	ctx := context.Background()
	if _, err := a.InitChain(ctx, &abci.InitChainRequest{ChainId: testChainID, AppStateBytes: testGenesis(t, pk, nil)}); err != nil {
		t.Fatalf("InitChain: %v", err)
	}

	resp, err := a.FinalizeBlock(ctx, &abci.FinalizeBlockRequest{
		Height: 1,
		Txs: [][]byte{
			alice.signed(t, codec.TxRegisterAccount, codec.AuthRegisterAccountTx{Account: alice.addr, PubKey: alice.pub}),
			alice.signed(t, codec.TxJoin, codec.GameJoinTx{Player: alice.addr}),
		},
	})
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if len(resp.TxResults) != 2 || resp.TxResults[0].Code != 0 {
		t.Fatalf("unexpected tx results: %+v", resp.TxResults)
	}
	// No entropy was submitted, so the join is rejected inside the block.
	if resp.TxResults[1].Code == 0 {
		t.Fatalf("expected join without entropy to fail")
	}
	if _, err := a.Commit(ctx, &abci.CommitRequest{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := testutil.ToFloat64(m.BlockHeight); got != 1 {
		t.Fatalf("block height gauge=%v", got)
	}
	if got := testutil.ToFloat64(m.TxCounter.WithLabelValues(codec.TxRegisterAccount, "", "0")); got != 1 {
		t.Fatalf("tx counter=%v", got)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = state.OpenStore(state.BackendGoLevelDB, home)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	b, err := New(store, log.NewNopLogger(), nil)
	if err != nil {
		t.Fatalf("New after restart: %v", err)
	}
	defer b.Close()
	info, err := b.Info(ctx, &abci.InfoRequest{})
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.LastBlockHeight != 1 || !bytes.Equal(info.LastBlockAppHash, resp.AppHash) {
		t.Fatalf("restart lost state: height=%d hash=%x want %x", info.LastBlockHeight, info.LastBlockAppHash, resp.AppHash)
	}
	if _, ok := b.st.AccountKeys[alice.addr]; !ok {
		t.Fatalf("registered account missing after restart")
	}
}

func TestInitChain_RejectsBadGenesis(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]string{
		"empty":        ``,
		"not json":     `{`,
		"no key":       `{"entropyProviders":["kms"]}`,
		"bad key":      `{"networkKey":"0x1234"}`,
		"identity key": `{"networkKey":"0x` + strings.Repeat("00", 32) + `"}`,
		"dup provider": `{"networkKey":"` + engcrypto.BytesToHex(engcrypto.PointBase().Bytes()) + `","entropyProviders":["a","a"]}`,
		"bad range":    `{"networkKey":"` + engcrypto.BytesToHex(engcrypto.PointBase().Bytes()) + `","params":{"numberLow":10,"numberHigh":2}}`,
		"wide range":   `{"networkKey":"` + engcrypto.BytesToHex(engcrypto.PointBase().Bytes()) + `","params":{"numberLow":1,"numberHigh":5000}}`,
		"zero params":  `{"networkKey":"` + engcrypto.BytesToHex(engcrypto.PointBase().Bytes()) + `","params":{"numberLow":0,"numberHigh":0}}`,
		"zero low":     `{"networkKey":"` + engcrypto.BytesToHex(engcrypto.PointBase().Bytes()) + `","params":{"numberLow":0,"numberHigh":9}}`,
	} {
		a := newTestApp(t)
		if _, err := a.InitChain(ctx, &abci.InitChainRequest{ChainId: testChainID, AppStateBytes: []byte(raw)}); err == nil {
			t.Fatalf("%s: expected InitChain to fail", name)
		}
	}
}

func TestQuery_ParamsAndUnknownPaths(t *testing.T) {
	c := newTestChain(t, &state.Params{NumberLow: 5, NumberHigh: 9})

	var params ParamsResponse
	c.query(t, "/params", &params)
	if params.ChainID != testChainID || params.NumberLow != 5 || params.NumberHigh != 9 {
		t.Fatalf("unexpected params: %+v", params)
	}
	if params.NetworkKey != engcrypto.BytesToHex(c.pk.Bytes()) {
		t.Fatalf("network key mismatch")
	}

	var numbers NumbersResponse
	c.query(t, "/numbers/nobody", &numbers)
	if numbers.Numbers != [3]string{} {
		t.Fatalf("expected empty handles for unjoined player, got %v", numbers.Numbers)
	}
	var score ScoreResponse
	c.query(t, "/score/nobody", &score)
	if score.Score != "" {
		t.Fatalf("expected empty score for unjoined player, got %q", score.Score)
	}

	ctx := context.Background()
	for _, path := range []string{"/nope", "/acl/0xabc", "/acl/0xabc/alice", "/ciphertext/0xabc"} {
		res, err := c.app.Query(ctx, &abci.QueryRequest{Path: path})
		if err != nil {
			t.Fatalf("query %s: %v", path, err)
		}
		if res.Code == 0 {
			t.Fatalf("query %s: expected failure", path)
		}
	}
}

func TestCheckTx_StatelessValidation(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	alice := newTestAccount("alice")

	ok, err := a.CheckTx(ctx, &abci.CheckTxRequest{Tx: alice.signed(t, codec.TxJoin, codec.GameJoinTx{Player: alice.addr})})
	if err != nil || ok.Code != 0 {
		t.Fatalf("expected signed tx to pass CheckTx: %v %+v", err, ok)
	}
	for _, tx := range [][]byte{
		[]byte(`garbage`),
		[]byte(`{"type":"game/join","value":{}}`),
		mustMarshal(t, codec.TxEnvelope{Type: codec.TxJoin, Value: []byte(`{}`), Nonce: "x", Signer: "a", Sig: make([]byte, 64)}),
	} {
		res, err := a.CheckTx(ctx, &abci.CheckTxRequest{Tx: tx})
		if err != nil {
			t.Fatalf("CheckTx: %v", err)
		}
		if res.Code == 0 {
			t.Fatalf("expected CheckTx to reject %q", tx)
		}
	}
}
