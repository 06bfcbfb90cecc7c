package rng

import errorsmod "cosmossdk.io/errors"

const Codespace = "rng"

var (
	ErrInvalidRange    = errorsmod.Register(Codespace, 2, "invalid random range")
	ErrInvalidTicket   = errorsmod.Register(Codespace, 3, "invalid entropy ticket")
	ErrNotProvider     = errorsmod.Register(Codespace, 4, "not a registered entropy provider")
	ErrPoolExhausted   = errorsmod.Register(Codespace, 5, "entropy pool exhausted")
	ErrDuplicateTicket = errorsmod.Register(Codespace, 6, "entropy ticket already submitted")
)
