package pool

import (
	"fmt"
	"sort"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"sweepchain/internal/state"
)

// PayoutPlan is every effect of a distribution, computed before any of them
// is applied.
type PayoutPlan struct {
	Closing   state.Round
	Next      state.Round
	Transfers []state.Payout
	Record    *state.RewardRecord
}

// Distribute closes the current round: it picks the outcome, pays it out of
// the pool, records it in history and opens the next round. Either all of
// that happens or none of it does.
func (k Keeper) Distribute(st *state.State, caller string, env Env) ([]abci.Event, error) {
	if err := requireRole(st.Pool, RoleAutomation, caller); err != nil {
		return nil, err
	}
	plan, err := k.PlanDistribution(st, env)
	if err != nil {
		return nil, err
	}
	if err := applyPlan(st, plan); err != nil {
		return nil, err
	}

	k.logger.Info("round distributed",
		"round", plan.Closing.ID,
		"winner", plan.Record.Winner,
		"amount", plan.Record.Amount,
		"payouts", len(plan.Transfers),
	)
	return distributionEvents(plan, caller), nil
}

// PlanDistribution validates the round and computes its outcome without
// mutating st.
func (k Keeper) PlanDistribution(st *state.State, env Env) (*PayoutPlan, error) {
	p := st.Pool
	logic, err := k.ActiveLogic(p)
	if err != nil {
		return nil, err
	}
	if err := requireEligible(p, env.Time); err != nil {
		return nil, err
	}
	if len(p.Entries) == 0 {
		return nil, errorsmod.Wrapf(ErrNoParticipants, "round %d", p.Round.ID)
	}
	if _, exists := p.History[p.Round.ID]; exists {
		return nil, errorsmod.Wrapf(ErrInternal, "round %d already has a reward record", p.Round.ID)
	}
	next, err := nextRound(p, env.Time)
	if err != nil {
		return nil, err
	}

	balance := st.PoolBalance()
	seed := env.randomness().Seed(EntropyInput{
		ChainID:      env.ChainID,
		Height:       env.Height,
		Time:         env.Time,
		BlockHash:    env.BlockHash,
		Proposer:     env.Proposer,
		RoundID:      p.Round.ID,
		Participants: uint32(len(p.Entries)),
		PoolBalance:  balance,
	})

	entries := make([]state.Entry, len(p.Entries))
	copy(entries, p.Entries)
	outcome, err := logic.Select(entries, balance, seed)
	if err != nil {
		return nil, err
	}

	var total uint64
	for _, t := range outcome.Payouts {
		if total, err = addUint64Checked(total, t.Amount, "payout total"); err != nil {
			return nil, errorsmod.Wrap(ErrInternal, err.Error())
		}
	}
	if total > balance {
		return nil, errorsmod.Wrapf(ErrInternal, "payouts %d exceed pool balance %d", total, balance)
	}

	return &PayoutPlan{
		Closing:   p.Round,
		Next:      next,
		Transfers: outcome.Payouts,
		Record: &state.RewardRecord{
			RoundID:        p.Round.ID,
			Winner:         outcome.Winner,
			Amount:         total,
			Timestamp:      env.Time,
			Entries:        uint32(len(p.Entries)),
			WinningNumbers: outcome.WinningNumbers,
			Payouts:        outcome.Payouts,
			Implementation: logic.Name(),
		},
	}, nil
}

// applyPlan checks every transfer against the current balances first and only
// then mutates st.
func applyPlan(st *state.State, plan *PayoutPlan) error {
	p := st.Pool
	if p.Round != plan.Closing {
		return errorsmod.Wrapf(ErrInternal, "plan for round %d applied to round %d", plan.Closing.ID, p.Round.ID)
	}
	if _, exists := p.History[plan.Closing.ID]; exists {
		return errorsmod.Wrapf(ErrInternal, "round %d already has a reward record", plan.Closing.ID)
	}

	credits := map[string]uint64{}
	var total uint64
	for _, t := range plan.Transfers {
		credits[t.Recipient] += t.Amount
		total += t.Amount
	}
	if st.PoolBalance() < total {
		return errorsmod.Wrapf(ErrPayoutTransferFailed, "pool holds %d, payouts need %d", st.PoolBalance(), total)
	}
	recipients := make([]string, 0, len(credits))
	for r := range credits {
		recipients = append(recipients, r)
	}
	sort.Strings(recipients)
	for _, r := range recipients {
		if r == state.PoolAccount || st.Blocked[r] {
			return errorsmod.Wrapf(ErrPayoutTransferFailed, "%s: %s", state.ErrRecipientBlocked, r)
		}
		if bal := st.Balance(r); bal > ^uint64(0)-credits[r] {
			return errorsmod.Wrapf(ErrPayoutTransferFailed, "%s: credit %d to %s", state.ErrBalanceOverflow, credits[r], r)
		}
	}

	for _, t := range plan.Transfers {
		if err := st.Transfer(state.PoolAccount, t.Recipient, t.Amount); err != nil {
			return errorsmod.Wrap(ErrPayoutTransferFailed, err.Error())
		}
	}
	p.History[plan.Closing.ID] = plan.Record
	p.Entries = []state.Entry{}
	p.Round = plan.Next
	return nil
}

func distributionEvents(plan *PayoutPlan, caller string) []abci.Event {
	events := make([]abci.Event, 0, len(plan.Transfers)+1)
	for _, t := range plan.Transfers {
		attrs := map[string]string{
			"recipient": t.Recipient,
			"amount":    fmt.Sprintf("%d", t.Amount),
			"roundId":   fmt.Sprintf("%d", plan.Closing.ID),
		}
		if t.TierBps != 0 {
			attrs["matches"] = fmt.Sprintf("%d", t.Matches)
			attrs["tierBps"] = fmt.Sprintf("%d", t.TierBps)
		}
		events = append(events, newEvent(EventTypeRewardDistributed, attrs))
	}

	attrs := map[string]string{
		"closedRoundId":  fmt.Sprintf("%d", plan.Closing.ID),
		"roundId":        fmt.Sprintf("%d", plan.Next.ID),
		"startTimestamp": fmt.Sprintf("%d", plan.Next.StartTimestamp),
		"distributed":    fmt.Sprintf("%d", plan.Record.Amount),
		"sender":         caller,
	}
	if plan.Record.Winner != "" {
		attrs["winner"] = plan.Record.Winner
	}
	if len(plan.Record.WinningNumbers) > 0 {
		attrs["winningNumbers"] = joinNumbers(plan.Record.WinningNumbers)
	}
	return append(events, newEvent(EventTypeRoundAdvanced, attrs))
}
