package pool

import (
	errorsmod "cosmossdk.io/errors"

	"sweepchain/internal/state"
)

// Phase is derived from the block clock on every read; it is never stored.
type Phase string

const (
	PhaseOpen                    Phase = "open"
	PhaseEligibleForDistribution Phase = "eligible"
)

// Env is the block context an operation executes in.
type Env struct {
	ChainID   string
	Height    int64
	Time      int64 // block time, unix seconds
	BlockHash []byte
	Proposer  []byte

	// Randomness defaults to BlockEntropy when nil.
	Randomness RandomnessSource
}

func (e Env) randomness() RandomnessSource {
	if e.Randomness == nil {
		return BlockEntropy{}
	}
	return e.Randomness
}

// NextDistributionAt is the first block time at which the round may be
// distributed.
func NextDistributionAt(p *state.PoolState) (int64, error) {
	at, err := addInt64AndU64Checked(p.Round.StartTimestamp, p.Params.IntervalSecs, "distribution time")
	if err != nil {
		return 0, errorsmod.Wrap(ErrInternal, err.Error())
	}
	return at, nil
}

func CurrentPhase(p *state.PoolState, now int64) (Phase, error) {
	at, err := NextDistributionAt(p)
	if err != nil {
		return "", err
	}
	if now < at {
		return PhaseOpen, nil
	}
	return PhaseEligibleForDistribution, nil
}

func requireEligible(p *state.PoolState, now int64) error {
	phase, err := CurrentPhase(p, now)
	if err != nil {
		return err
	}
	if phase != PhaseEligibleForDistribution {
		at, _ := NextDistributionAt(p)
		return errorsmod.Wrapf(ErrRoundNotFinished, "round %d closes at %d, now %d", p.Round.ID, at, now)
	}
	return nil
}

// nextRound returns the round that follows a distribution at time now.
func nextRound(p *state.PoolState, now int64) (state.Round, error) {
	id, err := addUint64Checked(p.Round.ID, 1, "roundId")
	if err != nil {
		return state.Round{}, errorsmod.Wrap(ErrInternal, err.Error())
	}
	return state.Round{ID: id, StartTimestamp: now}, nil
}
