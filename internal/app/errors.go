package app

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"
)

const Codespace = "app"

var (
	ErrInvalidTx      = errorsmod.Register(Codespace, 2, "invalid tx")
	ErrUnknownTxType  = errorsmod.Register(Codespace, 3, "unknown tx type")
	ErrUnauthorized   = errorsmod.Register(Codespace, 4, "unauthorized")
	ErrInvalidNonce   = errorsmod.Register(Codespace, 5, "invalid tx.nonce")
	ErrReplayedNonce  = errorsmod.Register(Codespace, 6, "replayed tx.nonce")
	ErrInvalidGenesis = errorsmod.Register(Codespace, 7, "invalid genesis")
)

// errorCode maps registered errors to their ABCI code and codespace.
// Anything else is reported as code 1 in the default codespace.
func errorCode(err error) (uint32, string) {
	var e *errorsmod.Error
	if errors.As(err, &e) {
		return e.ABCICode(), e.Codespace()
	}
	return 1, ""
}

func resultFromError(err error) *abci.ExecTxResult {
	code, codespace := errorCode(err)
	return &abci.ExecTxResult{Code: code, Codespace: codespace, Log: err.Error()}
}
