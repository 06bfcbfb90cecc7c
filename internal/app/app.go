package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/confidential"
	"encryptednumbers/internal/game"
	"encryptednumbers/internal/metrics"
	"encryptednumbers/internal/rng"
	"encryptednumbers/internal/state"
)

const (
	AppVersion uint64 = 1
)

type App struct {
	*abci.BaseApplication

	logger  log.Logger
	metrics *metrics.Metrics
	store   state.Store

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(store state.Store, logger log.Logger, m *metrics.Metrics) (*App, error) {
	st, err := store.Load()
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}
	a := &App{
		BaseApplication: abci.NewBaseApplication(),
		logger:          logger.With("module", "app"),
		metrics:         m,
		store:           store,
		st:              st,
		lastHash:        st.AppHash(),
	}
	a.updateGauges()
	return a, nil
}

// engine wires the confidential store, the generator and the game engine
// over st.
func engine(st *state.State) (*game.Engine, *confidential.Store, *rng.Generator) {
	store := confidential.NewStore(st)
	gen := rng.NewGenerator(st, store)
	return game.NewEngine(st, store, gen), store, gen
}

func (a *App) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "encrypted numbers (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *App) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	env, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// Only stateless checks; signatures and nonces are enforced in FinalizeBlock.
	if err := requireSignedEnvelope(env); err != nil {
		code, codespace := errorCode(err)
		return &abci.CheckTxResponse{Code: code, Codespace: codespace, Log: err.Error()}, nil
	}
	if _, err := strconv.ParseUint(env.Nonce, 10, 64); err != nil {
		err = ErrInvalidNonce.Wrapf("%q", env.Nonce)
		code, codespace := errorCode(err)
		return &abci.CheckTxResponse{Code: code, Codespace: codespace, Log: err.Error()}, nil
	}
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *App) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(req.AppStateBytes) == 0 {
		return nil, ErrInvalidGenesis.Wrap("empty app state")
	}
	g, err := ParseGenesis(req.AppStateBytes)
	if err != nil {
		return nil, err
	}
	st := state.NewState()
	if err := g.Apply(st, req.ChainId); err != nil {
		return nil, err
	}
	a.st = st
	a.lastHash = st.AppHash()
	a.logger.Info("genesis applied",
		"chain_id", req.ChainId,
		"providers", len(st.Entropy.Providers),
		"number_low", st.Params.NumberLow,
		"number_high", st.Params.NumberHigh,
	)
	return &abci.InitChainResponse{}, nil
}

func (a *App) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()
	a.updateGauges()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *App) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Save(a.st); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		a.logger.Error("failed to persist state", "height", a.st.Height, "err", err)
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

// Close releases the state store.
func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) updateGauges() {
	a.metrics.BlockHeight.Set(float64(a.st.Height))
	a.metrics.EntropyPool.Set(float64(len(a.st.Entropy.Pool)))
	var joined, claimed int
	for _, p := range a.st.Players {
		switch {
		case p.HasClaimed:
			claimed++
		case p.Joined:
			joined++
		}
	}
	a.metrics.Players.WithLabelValues("joined").Set(float64(joined))
	a.metrics.Players.WithLabelValues("claimed").Set(float64(claimed))
}

// deliverTx executes one tx against a staged copy of the state and swaps it
// in only on success, so a failed tx leaves no trace.
func (a *App) deliverTx(txBytes []byte, height int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		a.countTx("", err)
		return resultFromError(ErrInvalidTx.Wrap(err.Error()))
	}

	staged, err := a.st.Clone()
	if err != nil {
		a.logger.Error("failed to stage state", "err", err)
		return resultFromError(err)
	}

	res, err := execTx(staged, env, height)
	a.countTx(env.Type, err)
	if err != nil {
		a.logger.Debug("tx rejected", "type", env.Type, "signer", env.Signer, "height", height, "err", err)
		return resultFromError(err)
	}
	a.st = staged
	return res
}

func (a *App) countTx(typ string, err error) {
	code, codespace := uint32(0), ""
	if err != nil {
		code, codespace = errorCode(err)
	}
	a.metrics.TxCounter.WithLabelValues(typ, codespace, strconv.FormatUint(uint64(code), 10)).Inc()
}

func execTx(st *state.State, env codec.TxEnvelope, height int64) (*abci.ExecTxResult, error) {
	switch env.Type {
	case codec.TxRegisterAccount:
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, ErrInvalidTx.Wrapf("bad %s value", env.Type)
		}
		if err := requireRegisterAccountAuth(st, env, msg); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env); err != nil {
			return nil, err
		}
		st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return okEvent("AccountRegistered", map[string]string{
			"account": msg.Account,
		}), nil

	case codec.TxJoin:
		var msg codec.GameJoinTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, ErrInvalidTx.Wrapf("bad %s value", env.Type)
		}
		if err := requireAccountAuth(st, env, msg.Player); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env); err != nil {
			return nil, err
		}
		eng, store, _ := engine(st)
		joined, err := eng.Join(msg.Player, height)
		if err != nil {
			return nil, err
		}
		res := okEvent("PlayerJoined", map[string]string{
			"player":  msg.Player,
			"number0": joined.Numbers[0].String(),
			"number1": joined.Numbers[1].String(),
			"number2": joined.Numbers[2].String(),
			"score":   joined.Score.String(),
		})
		res.Events = append(res.Events, aclEvents(store.Grants())...)
		return res, nil

	case codec.TxClaimPoints:
		var msg codec.GameClaimPointsTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, ErrInvalidTx.Wrapf("bad %s value", env.Type)
		}
		if err := requireAccountAuth(st, env, msg.Player); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env); err != nil {
			return nil, err
		}
		eng, store, _ := engine(st)
		score, err := eng.Claim(msg.Player, msg.Index, height)
		if err != nil {
			return nil, err
		}
		res := okEvent("PointsClaimed", map[string]string{
			"player": msg.Player,
			"index":  fmt.Sprintf("%d", msg.Index),
			"score":  score.String(),
		})
		res.Events = append(res.Events, aclEvents(store.Grants())...)
		return res, nil

	case codec.TxEntropySubmit:
		var msg codec.EntropySubmitTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, ErrInvalidTx.Wrapf("bad %s value", env.Type)
		}
		if err := requireAccountAuth(st, env, msg.Provider); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env); err != nil {
			return nil, err
		}
		_, _, gen := engine(st)
		n, err := gen.Submit(msg.Provider, msg.Tickets, height)
		if err != nil {
			return nil, err
		}
		return okEvent("EntropySubmitted", map[string]string{
			"provider": msg.Provider,
			"count":    fmt.Sprintf("%d", n),
			"poolSize": fmt.Sprintf("%d", gen.PoolSize()),
		}), nil

	default:
		return nil, ErrUnknownTxType.Wrap(env.Type)
	}
}
