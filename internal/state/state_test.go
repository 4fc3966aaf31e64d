package state

import (
	"bytes"
	"errors"
	"testing"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"
)

func TestAppHash_StableAcrossMapOrder(t *testing.T) {
	s1 := NewState()
	s1.Height = 7
	s1.Accounts["bob"] = 2
	s1.Accounts["alice"] = 1
	s1.Pool.Roles["admin"] = []string{"bob", "alice"}
	s1.Pool.History[2] = &RewardRecord{RoundID: 2, Winner: "bob"}
	s1.Pool.History[1] = &RewardRecord{RoundID: 1, Winner: "alice"}

	s2 := NewState()
	s2.Height = 7
	s2.Accounts["alice"] = 1
	s2.Accounts["bob"] = 2
	s2.Pool.Roles["admin"] = []string{"alice", "bob"}
	s2.Pool.History[1] = &RewardRecord{RoundID: 1, Winner: "alice"}
	s2.Pool.History[2] = &RewardRecord{RoundID: 2, Winner: "bob"}

	h1 := s1.AppHash()
	h2 := s2.AppHash()
	if !bytes.Equal(h1, h2) {
		t.Fatalf("expected stable app hash; h1=%x h2=%x", h1, h2)
	}

	// Any semantic change should change the hash.
	s2.Pool.Round.ID = 9
	h3 := s2.AppHash()
	if bytes.Equal(h1, h3) {
		t.Fatalf("expected hash to change after state mutation")
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := NewState()
	s.Accounts["alice"] = 10
	s.Pool.Entries = append(s.Pool.Entries, Entry{Participant: "alice", Amount: 5, Numbers: []uint32{1, 2, 3, 4, 5, 6, 7}})

	c, err := s.Clone()
	require.NoError(t, err)

	c.Accounts["alice"] = 0
	c.Pool.Entries[0].Numbers[0] = 49
	c.Pool.Entries = append(c.Pool.Entries, Entry{Participant: "bob", Amount: 5})

	require.Equal(t, uint64(10), s.Accounts["alice"])
	require.Equal(t, uint32(1), s.Pool.Entries[0].Numbers[0])
	require.Len(t, s.Pool.Entries, 1)
}

func TestTransfer_ChecksBothSidesBeforeMutating(t *testing.T) {
	s := NewState()
	s.Accounts["alice"] = 10
	s.Accounts["whale"] = ^uint64(0) - 1

	err := s.Transfer("alice", "whale", 5)
	require.True(t, errors.Is(err, ErrBalanceOverflow), "got %v", err)
	require.Equal(t, uint64(10), s.Balance("alice"))

	err = s.Transfer("alice", "bob", 11)
	require.True(t, errors.Is(err, ErrInsufficientFunds), "got %v", err)
	require.Equal(t, uint64(0), s.Balance("bob"))

	s.Blocked["vault"] = true
	err = s.Transfer("alice", "vault", 1)
	require.True(t, errors.Is(err, ErrRecipientBlocked), "got %v", err)

	require.NoError(t, s.Transfer("alice", "bob", 4))
	require.Equal(t, uint64(6), s.Balance("alice"))
	require.Equal(t, uint64(4), s.Balance("bob"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(dbm.NewMemDB(), nil)
	require.NoError(t, err)

	empty, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, int64(0), empty.Height)
	require.NotNil(t, empty.Pool)

	s := NewState()
	s.Height = 3
	s.Accounts[PoolAccount] = 40
	s.Pool.Initialized = true
	s.Pool.Implementation = "sweepstake/v1"
	s.Pool.Round = Round{ID: 2, StartTimestamp: 1000}
	s.Pool.History[1] = &RewardRecord{RoundID: 1, Winner: "alice", Amount: 40}
	id, err := store.Save(s)
	require.NoError(t, err)
	require.Equal(t, int64(3), id.Version)
	require.NotEmpty(t, id.Hash)

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, s.AppHash(), got.AppHash())
	require.Equal(t, "alice", got.Pool.History[1].Winner)

	next, err := got.Clone()
	require.NoError(t, err)
	next.Height = 4
	next.Accounts[PoolAccount] = 0
	_, err = store.Save(next)
	require.NoError(t, err)

	old, err := store.LoadAt(3)
	require.NoError(t, err)
	require.Equal(t, uint64(40), old.Balance(PoolAccount))
	latest, err := store.Load()
	require.NoError(t, err)
	require.Zero(t, latest.Balance(PoolAccount))
}

func TestStore_SaveRejectsHeightGaps(t *testing.T) {
	store, err := NewStore(dbm.NewMemDB(), nil)
	require.NoError(t, err)

	s := NewState()
	_, err = store.Save(s)
	require.Error(t, err)

	s.Height = 1
	_, err = store.Save(s)
	require.NoError(t, err)

	s.Height = 3
	_, err = store.Save(s)
	require.ErrorContains(t, err, "store expects 2")
}
