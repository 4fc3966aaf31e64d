package pool

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"sweepchain/internal/state"
)

const (
	TicketSize   = 7
	TicketMaxNum = 49

	bpsDenominator = 10_000
)

// ValidateTicket checks a numbered ticket: exactly 7 distinct values in [1,49].
func ValidateTicket(numbers []uint32) error {
	if len(numbers) != TicketSize {
		return errorsmod.Wrapf(ErrInvalidTicket, "need %d numbers, got %d", TicketSize, len(numbers))
	}
	var seen [TicketMaxNum + 1]bool
	for _, n := range numbers {
		if n < 1 || n > TicketMaxNum {
			return errorsmod.Wrapf(ErrInvalidTicket, "number %d out of range [1,%d]", n, TicketMaxNum)
		}
		if seen[n] {
			return errorsmod.Wrapf(ErrInvalidTicket, "duplicate number %d", n)
		}
		seen[n] = true
	}
	return nil
}

// SequentialMatches counts positions matched from the start of the ticket; the
// first mismatch ends the count.
func SequentialMatches(ticket, winning []uint32) uint8 {
	var n uint8
	for i := 0; i < len(ticket) && i < len(winning); i++ {
		if ticket[i] != winning[i] {
			break
		}
		n++
	}
	return n
}

// TierBps is the share of the pool, in basis points, paid to the tier a match
// count falls into.
func TierBps(matches uint8) uint32 {
	switch {
	case matches >= 7:
		return 3000
	case matches >= 5:
		return 2000
	case matches == 4:
		return 1500
	case matches == 3:
		return 1000
	case matches == 2:
		return 500
	default:
		return 0
	}
}

type scoredTicket struct {
	index   int
	matches uint8
	bps     uint32
}

// apportion splits the pool across winning tickets. Each tier's share is
// divided evenly among its tickets; remainders and empty tiers stay in the
// pool. Payouts are ranked by tier, then by entry order.
func apportion(entries []state.Entry, winning []uint32, pool uint64) []state.Payout {
	byTier := map[uint32][]scoredTicket{}
	var ranked []scoredTicket
	for i, e := range entries {
		m := SequentialMatches(e.Numbers, winning)
		bps := TierBps(m)
		if bps == 0 {
			continue
		}
		s := scoredTicket{index: i, matches: m, bps: bps}
		byTier[bps] = append(byTier[bps], s)
		ranked = append(ranked, s)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].bps != ranked[j].bps {
			return ranked[i].bps > ranked[j].bps
		}
		return ranked[i].index < ranked[j].index
	})

	payouts := make([]state.Payout, 0, len(ranked))
	for _, s := range ranked {
		share := sdkmath.NewUint(pool).MulUint64(uint64(s.bps)).QuoUint64(bpsDenominator)
		each := share.QuoUint64(uint64(len(byTier[s.bps])))
		if each.IsZero() {
			continue
		}
		payouts = append(payouts, state.Payout{
			Recipient:  entries[s.index].Participant,
			Amount:     each.Uint64(),
			EntryIndex: s.index,
			Matches:    s.matches,
			TierBps:    s.bps,
		})
	}
	return payouts
}
