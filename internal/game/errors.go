package game

import errorsmod "cosmossdk.io/errors"

const Codespace = "game"

var (
	ErrAlreadyJoined    = errorsmod.Register(Codespace, 2, "already joined")
	ErrNotJoined        = errorsmod.Register(Codespace, 3, "not joined")
	ErrAlreadyClaimed   = errorsmod.Register(Codespace, 4, "already claimed")
	ErrInvalidIndex     = errorsmod.Register(Codespace, 5, "invalid index")
	ErrEntropyExhausted = errorsmod.Register(Codespace, 6, "not enough entropy to join")
	ErrInvalidIdentity  = errorsmod.Register(Codespace, 7, "invalid identity")
)
