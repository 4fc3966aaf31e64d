package pool

import errorsmod "cosmossdk.io/errors"

// ModuleName is also the error codespace.
const ModuleName = "pool"

// x/pool sentinel errors. Every failure aborts the tx with no state change.
var (
	ErrInvalidRequest            = errorsmod.Register(ModuleName, 1, "invalid request")
	ErrIncorrectStake            = errorsmod.Register(ModuleName, 2, "incorrect stake")
	ErrRoundOrAdmissionClosed    = errorsmod.Register(ModuleName, 3, "round or admission closed")
	ErrRoundNotFinished          = errorsmod.Register(ModuleName, 4, "round not finished")
	ErrNoParticipants            = errorsmod.Register(ModuleName, 5, "no participants")
	ErrUnauthorized              = errorsmod.Register(ModuleName, 6, "unauthorized")
	ErrPayoutTransferFailed      = errorsmod.Register(ModuleName, 7, "payout transfer failed")
	ErrAlreadyInitialized        = errorsmod.Register(ModuleName, 8, "already initialized")
	ErrIncompatibleStorageLayout = errorsmod.Register(ModuleName, 9, "incompatible storage layout")
	ErrNotInitialized            = errorsmod.Register(ModuleName, 10, "pool not initialized")
	ErrInvalidTicket             = errorsmod.Register(ModuleName, 11, "invalid ticket")
	ErrInternal                  = errorsmod.Register(ModuleName, 12, "internal invariant violated")
)
