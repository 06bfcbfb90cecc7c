package confidential

import errorsmod "cosmossdk.io/errors"

const Codespace = "confidential"

var (
	ErrUnknownHandle     = errorsmod.Register(Codespace, 2, "unknown ciphertext handle")
	ErrNotAuthorized     = errorsmod.Register(Codespace, 3, "principal not authorized for handle")
	ErrUnsupportedOp     = errorsmod.Register(Codespace, 4, "unsupported ciphertext operation")
	ErrNoNetworkKey      = errorsmod.Register(Codespace, 5, "network key not configured")
	ErrInvalidCiphertext = errorsmod.Register(Codespace, 6, "invalid ciphertext")
	ErrInvalidPrincipal  = errorsmod.Register(Codespace, 7, "invalid principal")
)
