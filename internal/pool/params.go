package pool

import (
	errorsmod "cosmossdk.io/errors"

	"sweepchain/internal/state"
)

const (
	// DefaultStake is 0.02 of the native token in 6-decimal base units.
	DefaultStake uint64 = 20_000
	// DefaultIntervalSecs is the minimum round length.
	DefaultIntervalSecs uint64 = 600

	maxIntervalSecs uint64 = 365 * 24 * 60 * 60
)

func DefaultParams() state.PoolParams {
	return state.PoolParams{
		Stake:        DefaultStake,
		IntervalSecs: DefaultIntervalSecs,
	}
}

func ValidateParams(p state.PoolParams) error {
	if p.Stake == 0 {
		return errorsmod.Wrap(ErrInvalidRequest, "stake must be > 0")
	}
	if p.IntervalSecs == 0 {
		return errorsmod.Wrap(ErrInvalidRequest, "intervalSecs must be > 0")
	}
	if p.IntervalSecs > maxIntervalSecs {
		return errorsmod.Wrapf(ErrInvalidRequest, "intervalSecs must be <= %d", maxIntervalSecs)
	}
	return nil
}
