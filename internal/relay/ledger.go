package relay

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"

	"encryptednumbers/internal/app"
	"encryptednumbers/internal/engcrypto"
)

// ErrNotFound is returned when the ledger has no record for the lookup.
var ErrNotFound = errors.New("not found")

// Ledger is the relay's read-only view of the chain.
type Ledger interface {
	Ciphertext(ctx context.Context, handle string) (engcrypto.Ciphertext, error)
	IsAuthorized(ctx context.Context, handle, principal string) (bool, error)
	AccountKey(ctx context.Context, principal string) (ed25519.PublicKey, error)
	Params(ctx context.Context) (app.ParamsResponse, error)
}

// QueryFunc runs an ABCI query and returns the response.
type QueryFunc func(ctx context.Context, path string) (*abci.QueryResponse, error)

// ABCILedger implements Ledger over the app's ABCI query paths.
type ABCILedger struct {
	query QueryFunc
}

func NewABCILedger(q QueryFunc) *ABCILedger {
	return &ABCILedger{query: q}
}

// Querier is satisfied by *app.App.
type Querier interface {
	Query(ctx context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error)
}

// NewLocalLedger queries an in-process application.
func NewLocalLedger(q Querier) *ABCILedger {
	return NewABCILedger(func(ctx context.Context, path string) (*abci.QueryResponse, error) {
		return q.Query(ctx, &abci.QueryRequest{Path: path})
	})
}

// NewRPCLedger queries a node over its CometBFT RPC endpoint.
func NewRPCLedger(remote string) (*ABCILedger, error) {
	c, err := rpchttp.New(remote)
	if err != nil {
		return nil, fmt.Errorf("rpc client: %w", err)
	}
	return NewABCILedger(func(ctx context.Context, path string) (*abci.QueryResponse, error) {
		res, err := c.ABCIQuery(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		return &res.Response, nil
	}), nil
}

func (l *ABCILedger) get(ctx context.Context, path string, out any) error {
	res, err := l.query(ctx, path)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	if res.Code != 0 {
		if res.Codespace == "confidential" {
			return fmt.Errorf("query %s: %s: %w", path, res.Log, ErrNotFound)
		}
		return fmt.Errorf("query %s: code=%d log=%s", path, res.Code, res.Log)
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return fmt.Errorf("query %s: decode: %w", path, err)
	}
	return nil
}

func (l *ABCILedger) Ciphertext(ctx context.Context, handle string) (engcrypto.Ciphertext, error) {
	var resp app.CiphertextResponse
	if err := l.get(ctx, "/ciphertext/"+handle, &resp); err != nil {
		return engcrypto.Ciphertext{}, err
	}
	c1, err := engcrypto.HexToBytes(resp.C1)
	if err != nil {
		return engcrypto.Ciphertext{}, fmt.Errorf("ciphertext %s: %w", handle, err)
	}
	c2, err := engcrypto.HexToBytes(resp.C2)
	if err != nil {
		return engcrypto.Ciphertext{}, fmt.Errorf("ciphertext %s: %w", handle, err)
	}
	return engcrypto.CiphertextFromParts(c1, c2)
}

func (l *ABCILedger) IsAuthorized(ctx context.Context, handle, principal string) (bool, error) {
	var resp app.ACLResponse
	if err := l.get(ctx, "/acl/"+handle+"/"+principal, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return resp.Authorized, nil
}

func (l *ABCILedger) AccountKey(ctx context.Context, principal string) (ed25519.PublicKey, error) {
	var resp app.AccountResponse
	if err := l.get(ctx, "/account/"+principal, &resp); err != nil {
		return nil, err
	}
	if len(resp.PubKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("account %s: %w", principal, ErrNotFound)
	}
	return ed25519.PublicKey(resp.PubKey), nil
}

func (l *ABCILedger) Params(ctx context.Context) (app.ParamsResponse, error) {
	var resp app.ParamsResponse
	err := l.get(ctx, "/params", &resp)
	return resp, err
}
