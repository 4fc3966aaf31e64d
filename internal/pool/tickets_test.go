package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"sweepchain/internal/state"
)

// ticketWithPrefix returns a valid ticket matching winning in exactly its
// first k positions.
func ticketWithPrefix(t *testing.T, winning []uint32, k int) []uint32 {
	t.Helper()
	used := map[uint32]bool{}
	for _, n := range winning {
		used[n] = true
	}
	out := append([]uint32(nil), winning[:k]...)
	for n := uint32(1); len(out) < TicketSize; n++ {
		if !used[n] {
			out = append(out, n)
		}
	}
	require.NoError(t, ValidateTicket(out))
	require.Equal(t, uint8(k), SequentialMatches(out, winning))
	return out
}

func TestValidateTicket(t *testing.T) {
	require.NoError(t, ValidateTicket([]uint32{1, 2, 3, 4, 5, 6, 49}))

	bad := [][]uint32{
		nil,
		{1, 2, 3, 4, 5, 6},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{0, 2, 3, 4, 5, 6, 7},
		{1, 2, 3, 4, 5, 6, 50},
		{1, 2, 3, 4, 5, 6, 6},
	}
	for _, nums := range bad {
		require.ErrorIs(t, ValidateTicket(nums), ErrInvalidTicket, "%v", nums)
	}
}

func TestSequentialMatches_StopsAtFirstMismatch(t *testing.T) {
	winning := []uint32{5, 10, 15, 20, 25, 30, 35}

	require.Equal(t, uint8(7), SequentialMatches(winning, winning))
	require.Equal(t, uint8(3), SequentialMatches([]uint32{5, 10, 15, 1, 25, 30, 35}, winning))
	// Same set, different order: only the leading run counts.
	require.Equal(t, uint8(0), SequentialMatches([]uint32{10, 5, 15, 20, 25, 30, 35}, winning))
}

func TestTierBps(t *testing.T) {
	want := map[uint8]uint32{0: 0, 1: 0, 2: 500, 3: 1000, 4: 1500, 5: 2000, 6: 2000, 7: 3000}
	for m, bps := range want {
		require.Equal(t, bps, TierBps(m), "matches=%d", m)
	}
}

func TestApportion_SplitsTiersAndRanks(t *testing.T) {
	winning := drawNumbers([32]byte{}, TicketMaxNum, TicketSize)
	entries := []state.Entry{
		{Participant: "dave", Numbers: ticketWithPrefix(t, winning, 2)},
		{Participant: "bob", Numbers: ticketWithPrefix(t, winning, 5)},
		{Participant: "carol", Numbers: ticketWithPrefix(t, winning, 6)},
		{Participant: "alice", Numbers: ticketWithPrefix(t, winning, 7)},
		{Participant: "erin", Numbers: ticketWithPrefix(t, winning, 1)},
	}

	payouts := apportion(entries, winning, 1_000_000)
	require.Len(t, payouts, 4)

	require.Equal(t, "alice", payouts[0].Recipient)
	require.Equal(t, uint64(300_000), payouts[0].Amount)
	require.Equal(t, uint32(3000), payouts[0].TierBps)

	// 5 and 6 matches share one tier, ranked by entry order.
	require.Equal(t, "bob", payouts[1].Recipient)
	require.Equal(t, uint64(100_000), payouts[1].Amount)
	require.Equal(t, "carol", payouts[2].Recipient)
	require.Equal(t, uint64(100_000), payouts[2].Amount)

	require.Equal(t, "dave", payouts[3].Recipient)
	require.Equal(t, uint64(50_000), payouts[3].Amount)
	require.Equal(t, 0, payouts[3].EntryIndex)
}

func TestApportion_DustStaysInPool(t *testing.T) {
	winning := drawNumbers([32]byte{}, TicketMaxNum, TicketSize)
	entries := []state.Entry{
		{Participant: "a", Numbers: ticketWithPrefix(t, winning, 3)},
		{Participant: "b", Numbers: ticketWithPrefix(t, winning, 3)},
		{Participant: "c", Numbers: ticketWithPrefix(t, winning, 3)},
	}
	// 10% of 1000 = 100, split three ways = 33 each.
	payouts := apportion(entries, winning, 1000)
	require.Len(t, payouts, 3)
	var sum uint64
	for _, p := range payouts {
		require.Equal(t, uint64(33), p.Amount)
		sum += p.Amount
	}
	require.Equal(t, uint64(99), sum)

	require.Empty(t, apportion(entries, winning, 5))
}

func FuzzApportion_Conservation(f *testing.F) {
	f.Add(uint64(1_000_000), uint8(5), byte(0))
	f.Add(^uint64(0), uint8(40), byte(7))
	f.Add(uint64(1), uint8(1), byte(3))

	f.Fuzz(func(t *testing.T, pool uint64, n uint8, salt byte) {
		winning := drawNumbers(hashDomain("winning", []byte{salt}), TicketMaxNum, TicketSize)
		entries := make([]state.Entry, 0, n)
		for i := 0; i < int(n); i++ {
			nums := drawNumbers(hashDomain("ticket", []byte{salt, byte(i)}), TicketMaxNum, TicketSize)
			// Force some leading matches so every tier gets exercised.
			copy(nums, winning[:i%TicketSize])
			if ValidateTicket(nums) != nil {
				continue
			}
			entries = append(entries, state.Entry{Participant: "p", Numbers: nums})
		}

		payouts := apportion(entries, winning, pool)

		sum := new(big.Int)
		perTier := map[uint32]*big.Int{}
		for _, p := range payouts {
			if p.Amount == 0 {
				t.Fatalf("zero payout emitted")
			}
			sum.Add(sum, new(big.Int).SetUint64(p.Amount))
			if perTier[p.TierBps] == nil {
				perTier[p.TierBps] = new(big.Int)
			}
			perTier[p.TierBps].Add(perTier[p.TierBps], new(big.Int).SetUint64(p.Amount))
		}
		if sum.Cmp(new(big.Int).SetUint64(pool)) > 0 {
			t.Fatalf("payouts %s exceed pool %d", sum, pool)
		}
		for bps, got := range perTier {
			limit := new(big.Int).SetUint64(pool)
			limit.Mul(limit, big.NewInt(int64(bps)))
			limit.Quo(limit, big.NewInt(bpsDenominator))
			if got.Cmp(limit) > 0 {
				t.Fatalf("tier %d paid %s, share is %s", bps, got, limit)
			}
		}
		for i := 1; i < len(payouts); i++ {
			if payouts[i-1].TierBps < payouts[i].TierBps {
				t.Fatalf("payouts not ranked by tier at %d", i)
			}
		}
	})
}
