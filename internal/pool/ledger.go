package pool

import (
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"sweepchain/internal/state"
)

// Join admits participant into the current round for exactly one stake.
func (k Keeper) Join(st *state.State, participant string, amount uint64) (abci.Event, error) {
	return k.admit(st, participant, amount, nil)
}

// BuyTicket admits participant with a numbered ticket.
func (k Keeper) BuyTicket(st *state.State, participant string, amount uint64, numbers []uint32) (abci.Event, error) {
	if err := ValidateTicket(numbers); err != nil {
		return abci.Event{}, err
	}
	return k.admit(st, participant, amount, append([]uint32(nil), numbers...))
}

func (k Keeper) admit(st *state.State, participant string, amount uint64, numbers []uint32) (abci.Event, error) {
	p := st.Pool
	logic, err := k.ActiveLogic(p)
	if err != nil {
		return abci.Event{}, err
	}
	if participant == "" {
		return abci.Event{}, errorsmod.Wrap(ErrInvalidRequest, "missing participant")
	}
	if participant == state.PoolAccount {
		return abci.Event{}, errorsmod.Wrap(ErrInvalidRequest, "pool account cannot join")
	}
	// A blocked address could never be paid, so its stake would strand the round.
	if st.Blocked[participant] {
		return abci.Event{}, errorsmod.Wrapf(ErrRoundOrAdmissionClosed, "%s cannot receive payouts", participant)
	}
	if err := checkAdmission(logic, p, numbers != nil); err != nil {
		return abci.Event{}, err
	}
	if amount != p.Params.Stake {
		return abci.Event{}, errorsmod.Wrapf(ErrIncorrectStake, "got %d, stake is %d", amount, p.Params.Stake)
	}
	if err := st.Transfer(participant, state.PoolAccount, amount); err != nil {
		return abci.Event{}, errorsmod.Wrap(ErrInvalidRequest, err.Error())
	}
	p.Entries = append(p.Entries, state.Entry{
		Participant: participant,
		Amount:      amount,
		Numbers:     numbers,
	})

	attrs := map[string]string{
		"participant": participant,
		"newBalance":  fmt.Sprintf("%d", st.PoolBalance()),
		"roundId":     fmt.Sprintf("%d", p.Round.ID),
		"entries":     fmt.Sprintf("%d", len(p.Entries)),
	}
	if numbers != nil {
		attrs["numbers"] = joinNumbers(numbers)
	}
	return newEvent(EventTypeJoined, attrs), nil
}

func checkAdmission(logic Logic, p *state.PoolState, ticket bool) error {
	if logic.Tickets() && !ticket {
		return errorsmod.Wrapf(ErrRoundOrAdmissionClosed, "%s only admits numbered tickets", logic.Name())
	}
	if !logic.Tickets() && ticket {
		return errorsmod.Wrapf(ErrRoundOrAdmissionClosed, "%s does not sell numbered tickets", logic.Name())
	}
	if !logic.AdmissionControl() {
		return nil
	}
	if p.Params.AdmissionPaused {
		return errorsmod.Wrap(ErrRoundOrAdmissionClosed, "admission paused")
	}
	if limit := p.Params.MaxParticipants; limit != 0 && uint64(len(p.Entries)) >= uint64(limit) {
		return errorsmod.Wrapf(ErrRoundOrAdmissionClosed, "round %d is full (%d entries)", p.Round.ID, limit)
	}
	return nil
}

// Participants returns the current round's entrants in admission order.
func Participants(p *state.PoolState) []string {
	out := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.Participant)
	}
	return out
}

func joinNumbers(numbers []uint32) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}
