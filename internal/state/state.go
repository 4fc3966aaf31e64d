package state

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// PoolAccount is the module account holding the pooled stakes. Its balance is
// the Pool Balance of the active round.
const PoolAccount = "module/pool"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrRecipientBlocked  = errors.New("recipient cannot accept funds")
)

// State is the complete storage layout owned by the application. Logic
// implementations operate on it but never own it: swapping the implementation
// only rewrites Pool.Implementation and Pool.Layout.
type State struct {
	Height    int64  `json:"height"`
	BlockTime int64  `json:"blockTime"` // unix seconds of the last finalized block
	ChainID   string `json:"chainId,omitempty"`

	Accounts    map[string]uint64 `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce
	Blocked     map[string]bool   `json:"blocked,omitempty"`     // addresses that refuse incoming transfers

	Pool *PoolState `json:"pool"`
}

type PoolParams struct {
	Stake           uint64 `json:"stake"`
	IntervalSecs    uint64 `json:"intervalSecs"`
	MaxParticipants uint32 `json:"maxParticipants,omitempty"` // 0 = unlimited
	AdmissionPaused bool   `json:"admissionPaused,omitempty"`
}

type Round struct {
	ID             uint64 `json:"id"`
	StartTimestamp int64  `json:"startTimestamp"` // unix seconds
}

// Entry is one admission into the current round. Numbers is set only for
// numbered tickets and keeps the order the buyer chose.
type Entry struct {
	Participant string   `json:"participant"`
	Amount      uint64   `json:"amount"`
	Numbers     []uint32 `json:"numbers,omitempty"`
}

type Payout struct {
	Recipient  string `json:"recipient"`
	Amount     uint64 `json:"amount"`
	EntryIndex int    `json:"entryIndex"`
	Matches    uint8  `json:"matches,omitempty"`
	TierBps    uint32 `json:"tierBps,omitempty"`
}

// RewardRecord is written once per round id when the round is distributed.
type RewardRecord struct {
	RoundID        uint64   `json:"roundId"`
	Winner         string   `json:"winner,omitempty"`
	Amount         uint64   `json:"amount"`
	Timestamp      int64    `json:"timestamp"`
	Entries        uint32   `json:"entries"`
	WinningNumbers []uint32 `json:"winningNumbers,omitempty"`
	Payouts        []Payout `json:"payouts,omitempty"`
	Implementation string   `json:"implementation"`
}

type PoolState struct {
	Initialized bool `json:"initialized"`

	// Upgrade slot: the registered logic implementation currently bound to this
	// storage, and the field layout that implementation declared when bound.
	Implementation string   `json:"implementation,omitempty"`
	Layout         []string `json:"layout,omitempty"`

	Params  PoolParams          `json:"params"`
	Round   Round               `json:"round"`
	Entries []Entry             `json:"entries"`
	Roles   map[string][]string `json:"roles"` // role -> sorted accounts

	History map[uint64]*RewardRecord `json:"history"`
}

func NewState() *State {
	s := &State{}
	s.normalize()
	return s
}

func (s *State) normalize() {
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.Blocked == nil {
		s.Blocked = map[string]bool{}
	}
	if s.Pool == nil {
		s.Pool = &PoolState{}
	}
	if s.Pool.Entries == nil {
		s.Pool.Entries = []Entry{}
	}
	if s.Pool.Roles == nil {
		s.Pool.Roles = map[string][]string{}
	}
	if s.Pool.History == nil {
		s.Pool.History = map[uint64]*RewardRecord{}
	}
}

func decodeState(b []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return &st, nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	return decodeState(b)
}

func (s *State) AppHash() []byte {
	// encoding/json sorts map keys, but history is keyed by uint64 and roles hold
	// slices; normalize both into ordered slices so the hash never depends on
	// how the maps were built.
	type roleKV struct {
		Role     string   `json:"role"`
		Accounts []string `json:"accounts"`
	}
	roles := make([]roleKV, 0, len(s.Pool.Roles))
	for role, accts := range s.Pool.Roles {
		sorted := append([]string(nil), accts...)
		sort.Strings(sorted)
		roles = append(roles, roleKV{Role: role, Accounts: sorted})
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Role < roles[j].Role })

	history := make([]*RewardRecord, 0, len(s.Pool.History))
	for _, rec := range s.Pool.History {
		history = append(history, rec)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].RoundID < history[j].RoundID })

	normalized := struct {
		Height         int64             `json:"height"`
		BlockTime      int64             `json:"blockTime"`
		Accounts       map[string]uint64 `json:"accounts"`
		AccountKeys    map[string][]byte `json:"accountKeys,omitempty"`
		NonceMax       map[string]uint64 `json:"nonceMax,omitempty"`
		Blocked        map[string]bool   `json:"blocked,omitempty"`
		Initialized    bool              `json:"initialized"`
		Implementation string            `json:"implementation"`
		Layout         []string          `json:"layout"`
		Params         PoolParams        `json:"params"`
		Round          Round             `json:"round"`
		Entries        []Entry           `json:"entries"`
		Roles          []roleKV          `json:"roles"`
		History        []*RewardRecord   `json:"history"`
	}{
		Height:         s.Height,
		BlockTime:      s.BlockTime,
		Accounts:       s.Accounts,
		AccountKeys:    s.AccountKeys,
		NonceMax:       s.NonceMax,
		Blocked:        s.Blocked,
		Initialized:    s.Pool.Initialized,
		Implementation: s.Pool.Implementation,
		Layout:         s.Pool.Layout,
		Params:         s.Pool.Params,
		Round:          s.Pool.Round,
		Entries:        s.Pool.Entries,
		Roles:          roles,
		History:        history,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("%w: have=%d add=%d", ErrBalanceOverflow, bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("%w: have=%d need=%d", ErrInsufficientFunds, bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// Transfer moves amount from one account to another. Both sides are checked
// before either balance changes.
func (s *State) Transfer(from, to string, amount uint64) error {
	if s.Blocked[to] {
		return fmt.Errorf("%w: %s", ErrRecipientBlocked, to)
	}
	if from == to {
		if s.Accounts[from] < amount {
			return fmt.Errorf("%w: have=%d need=%d", ErrInsufficientFunds, s.Accounts[from], amount)
		}
		return nil
	}
	if bal := s.Accounts[from]; bal < amount {
		return fmt.Errorf("%w: have=%d need=%d", ErrInsufficientFunds, bal, amount)
	}
	if bal := s.Accounts[to]; bal > ^uint64(0)-amount {
		return fmt.Errorf("%w: have=%d add=%d", ErrBalanceOverflow, bal, amount)
	}
	s.Accounts[from] -= amount
	s.Accounts[to] += amount
	return nil
}

// PoolBalance is the native balance held by the pool module account.
func (s *State) PoolBalance() uint64 {
	return s.Accounts[PoolAccount]
}
