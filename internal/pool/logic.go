package pool

import (
	"sort"

	errorsmod "cosmossdk.io/errors"

	"sweepchain/internal/state"
)

// Registered implementation names.
const (
	ImplSweepstakeV1      = "sweepstake/v1"
	ImplSweepstakeV2      = "sweepstake/v2"
	ImplSequentialLottoV1 = "sequential-lotto/v1"

	DefaultImplementation = ImplSweepstakeV1
)

// Storage fields in declaration order. An implementation's layout may only
// append to the layout already bound to the pool storage.
var (
	layoutV1 = []string{
		"round.id",
		"round.startTimestamp",
		"params.stake",
		"params.intervalSecs",
		"entries.participant",
		"entries.amount",
		"roles",
		"history.winner",
		"history.amount",
	}
	layoutV2    = appendLayout(layoutV1, "params.maxParticipants", "params.admissionPaused")
	layoutLotto = appendLayout(layoutV2, "entries.numbers", "history.winningNumbers", "history.payouts")
)

func appendLayout(base []string, fields ...string) []string {
	out := make([]string, 0, len(base)+len(fields))
	out = append(out, base...)
	return append(out, fields...)
}

// Outcome is what a Logic decides for a round; applying it is the executor's job.
type Outcome struct {
	Winner         string
	WinningNumbers []uint32
	Payouts        []state.Payout
}

// Logic is the replaceable behavior bound to the pool storage. It reads the
// storage it is handed and never keeps references to it.
type Logic interface {
	Name() string
	Layout() []string
	// Tickets reports whether entries carry numbered tickets.
	Tickets() bool
	// AdmissionControl reports whether pausing and participant caps apply.
	AdmissionControl() bool
	// Select decides the payouts of a non-empty round from the draw seed.
	Select(entries []state.Entry, poolBalance uint64, seed [32]byte) (Outcome, error)
	// CheckData returns an error if live pool data cannot be served by this logic.
	CheckData(p *state.PoolState) error
}

type singleWinner struct {
	name             string
	layout           []string
	admissionControl bool
}

func (l singleWinner) Name() string           { return l.name }
func (l singleWinner) Layout() []string       { return l.layout }
func (l singleWinner) Tickets() bool          { return false }
func (l singleWinner) AdmissionControl() bool { return l.admissionControl }

func (l singleWinner) Select(entries []state.Entry, poolBalance uint64, seed [32]byte) (Outcome, error) {
	if len(entries) == 0 {
		return Outcome{}, ErrNoParticipants
	}
	idx := selectIndex(seed, len(entries))
	winner := entries[idx].Participant
	return Outcome{
		Winner: winner,
		Payouts: []state.Payout{{
			Recipient:  winner,
			Amount:     poolBalance,
			EntryIndex: idx,
		}},
	}, nil
}

func (l singleWinner) CheckData(p *state.PoolState) error {
	for i, e := range p.Entries {
		if len(e.Numbers) != 0 {
			return errorsmod.Wrapf(ErrIncompatibleStorageLayout, "entry %d holds ticket numbers that %s cannot store", i, l.name)
		}
	}
	if !l.admissionControl && (p.Params.MaxParticipants != 0 || p.Params.AdmissionPaused) {
		return errorsmod.Wrapf(ErrIncompatibleStorageLayout, "admission settings are not representable by %s", l.name)
	}
	return nil
}

type sequentialLotto struct {
	name   string
	layout []string
}

func (l sequentialLotto) Name() string           { return l.name }
func (l sequentialLotto) Layout() []string       { return l.layout }
func (l sequentialLotto) Tickets() bool          { return true }
func (l sequentialLotto) AdmissionControl() bool { return true }

func (l sequentialLotto) Select(entries []state.Entry, poolBalance uint64, seed [32]byte) (Outcome, error) {
	if len(entries) == 0 {
		return Outcome{}, ErrNoParticipants
	}
	winning := drawNumbers(seed, TicketMaxNum, TicketSize)
	payouts := apportion(entries, winning, poolBalance)
	out := Outcome{WinningNumbers: winning, Payouts: payouts}
	if len(payouts) > 0 {
		out.Winner = payouts[0].Recipient
	}
	return out, nil
}

func (l sequentialLotto) CheckData(p *state.PoolState) error {
	for i, e := range p.Entries {
		if err := ValidateTicket(e.Numbers); err != nil {
			return errorsmod.Wrapf(ErrIncompatibleStorageLayout, "entry %d has no valid ticket for %s: %v", i, l.name, err)
		}
	}
	return nil
}

// Registry resolves implementation names to logic. It is fixed at build time;
// the zero value is not usable, use NewRegistry or DefaultRegistry.
type Registry struct {
	impls map[string]Logic
}

func NewRegistry(impls ...Logic) *Registry {
	r := &Registry{impls: map[string]Logic{}}
	for _, l := range impls {
		r.impls[l.Name()] = l
	}
	return r
}

var defaultRegistry = NewRegistry(
	singleWinner{name: ImplSweepstakeV1, layout: layoutV1},
	singleWinner{name: ImplSweepstakeV2, layout: layoutV2, admissionControl: true},
	sequentialLotto{name: ImplSequentialLottoV1, layout: layoutLotto},
)

func DefaultRegistry() *Registry { return defaultRegistry }

func (r *Registry) Lookup(name string) (Logic, error) {
	l, ok := r.impls[name]
	if !ok {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "unknown implementation %q", name)
	}
	return l, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.impls))
	for name := range r.impls {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
