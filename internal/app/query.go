package app

import (
	"context"
	"encoding/json"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"

	"encryptednumbers/internal/confidential"
	"encryptednumbers/internal/engcrypto"
)

// Query response bodies. The relay decodes the same types.

type PlayerResponse struct {
	Address    string `json:"address"`
	Joined     bool   `json:"joined"`
	HasClaimed bool   `json:"hasClaimed"`
}

type NumbersResponse struct {
	Address string    `json:"address"`
	Numbers [3]string `json:"numbers"`
}

type ScoreResponse struct {
	Address string `json:"address"`
	Score   string `json:"score"`
}

type CiphertextResponse struct {
	Handle    string `json:"handle"`
	C1        string `json:"c1"`
	C2        string `json:"c2"`
	CreatedAt int64  `json:"createdAt"`
}

type ACLResponse struct {
	Handle     string `json:"handle"`
	Principal  string `json:"principal"`
	Authorized bool   `json:"authorized"`
	Height     int64  `json:"height,omitempty"`
}

type AccountResponse struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey,omitempty"`
}

type EntropyResponse struct {
	Providers []string `json:"providers"`
	PoolSize  int      `json:"poolSize"`
	Available int      `json:"available"` // tickets usable for the game range
	Spent     uint64   `json:"spent"`
}

type ParamsResponse struct {
	ChainID    string `json:"chainId"`
	NetworkKey string `json:"networkKey"`
	NumberLow  uint32 `json:"numberLow"`
	NumberHigh uint32 `json:"numberHigh"`
}

func (a *App) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /player/<addr>
	// - /numbers/<addr>
	// - /score/<addr>
	// - /ciphertext/<handle>
	// - /acl/<handle>/<principal>
	// - /account/<addr>
	// - /entropy
	// - /params
	path := strings.TrimSpace(req.Path)
	eng, store, gen := engine(a.st)

	var body any
	switch {
	case strings.HasPrefix(path, "/player/"):
		addr := strings.TrimPrefix(path, "/player/")
		s := eng.Status(addr)
		body = PlayerResponse{Address: addr, Joined: s.Joined, HasClaimed: s.HasClaimed}
	case strings.HasPrefix(path, "/numbers/"):
		addr := strings.TrimPrefix(path, "/numbers/")
		resp := NumbersResponse{Address: addr}
		for i, h := range eng.Numbers(addr) {
			resp.Numbers[i] = h.String()
		}
		body = resp
	case strings.HasPrefix(path, "/score/"):
		addr := strings.TrimPrefix(path, "/score/")
		body = ScoreResponse{Address: addr, Score: eng.Score(addr).String()}
	case strings.HasPrefix(path, "/ciphertext/"):
		h := confidential.Handle(strings.TrimPrefix(path, "/ciphertext/"))
		ct, err := store.Get(h)
		if err != nil {
			return a.queryError(err), nil
		}
		body = CiphertextResponse{
			Handle:    h.String(),
			C1:        engcrypto.BytesToHex(ct.C1.Bytes()),
			C2:        engcrypto.BytesToHex(ct.C2.Bytes()),
			CreatedAt: a.st.Ciphertexts[h.String()].CreatedAt,
		}
	case strings.HasPrefix(path, "/acl/"):
		parts := strings.SplitN(strings.TrimPrefix(path, "/acl/"), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return &abci.QueryResponse{Code: 1, Log: "expected /acl/<handle>/<principal>", Height: a.st.Height}, nil
		}
		h := confidential.Handle(parts[0])
		if !store.Exists(h) {
			return a.queryError(confidential.ErrUnknownHandle.Wrapf("handle %s", h)), nil
		}
		height, ok := store.GrantedAt(h, parts[1])
		body = ACLResponse{Handle: h.String(), Principal: parts[1], Authorized: ok, Height: height}
	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		body = AccountResponse{Account: addr, PubKey: a.st.AccountKeys[addr]}
	case path == "/entropy":
		body = EntropyResponse{
			Providers: append([]string{}, a.st.Entropy.Providers...),
			PoolSize:  gen.PoolSize(),
			Available: gen.Available(a.st.Params.NumberLow, a.st.Params.NumberHigh),
			Spent:     a.st.Entropy.Spent,
		}
	case path == "/params":
		resp := ParamsResponse{
			ChainID:    a.st.ChainID,
			NumberLow:  a.st.Params.NumberLow,
			NumberHigh: a.st.Params.NumberHigh,
		}
		if len(a.st.NetworkKey) > 0 {
			resp.NetworkKey = engcrypto.BytesToHex(a.st.NetworkKey)
		}
		body = resp
	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}

	b, err := json.Marshal(body)
	if err != nil {
		return a.queryError(err), nil
	}
	return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
}

func (a *App) queryError(err error) *abci.QueryResponse {
	code, codespace := errorCode(err)
	return &abci.QueryResponse{Code: code, Codespace: codespace, Log: err.Error(), Height: a.st.Height}
}
