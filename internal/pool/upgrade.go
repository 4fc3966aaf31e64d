package pool

import (
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"sweepchain/internal/state"
)

// InitRequest carries the optional settings of initialize. Zero fields fall
// back to DefaultParams and DefaultImplementation.
type InitRequest struct {
	Implementation  string
	Stake           uint64
	IntervalSecs    uint64
	MaxParticipants uint32
}

// Initialize binds the pool storage to an implementation and opens round 1.
// It succeeds once per storage; caller becomes the first admin and automation
// account.
func (k Keeper) Initialize(st *state.State, caller string, req InitRequest, env Env) (abci.Event, error) {
	p := st.Pool
	if p.Initialized {
		return abci.Event{}, errorsmod.Wrapf(ErrAlreadyInitialized, "bound to %s", p.Implementation)
	}
	if caller == "" {
		return abci.Event{}, errorsmod.Wrap(ErrInvalidRequest, "missing caller")
	}

	impl := req.Implementation
	if impl == "" {
		impl = DefaultImplementation
	}
	logic, err := k.registry.Lookup(impl)
	if err != nil {
		return abci.Event{}, err
	}

	params := DefaultParams()
	if req.Stake != 0 {
		params.Stake = req.Stake
	}
	if req.IntervalSecs != 0 {
		params.IntervalSecs = req.IntervalSecs
	}
	params.MaxParticipants = req.MaxParticipants
	if err := ValidateParams(params); err != nil {
		return abci.Event{}, err
	}
	if params.MaxParticipants != 0 && !logic.AdmissionControl() {
		return abci.Event{}, errorsmod.Wrapf(ErrInvalidRequest, "%s has no participant cap", impl)
	}
	if env.Time < 0 {
		return abci.Event{}, errorsmod.Wrap(ErrInvalidRequest, "negative block time")
	}

	p.Initialized = true
	p.Implementation = logic.Name()
	p.Layout = append([]string(nil), logic.Layout()...)
	p.Params = params
	p.Round = state.Round{ID: 1, StartTimestamp: env.Time}
	p.Entries = []state.Entry{}
	p.Roles = map[string][]string{
		RoleAdmin:      {caller},
		RoleAutomation: {caller},
	}

	k.logger.Info("pool initialized", "implementation", p.Implementation, "admin", caller, "stake", params.Stake)
	return newEvent(EventTypePoolInitialized, map[string]string{
		"implementation": p.Implementation,
		"admin":          caller,
		"stake":          fmt.Sprintf("%d", params.Stake),
		"intervalSecs":   fmt.Sprintf("%d", params.IntervalSecs),
		"roundId":        "1",
	}), nil
}

// Upgrade rebinds the pool storage to another registered implementation. Only
// the implementation slot and the stored layout change.
func (k Keeper) Upgrade(st *state.State, caller, impl string) (abci.Event, error) {
	p := st.Pool
	if err := requireRole(p, RoleAdmin, caller); err != nil {
		return abci.Event{}, err
	}
	current, err := k.ActiveLogic(p)
	if err != nil {
		return abci.Event{}, err
	}
	next, err := k.registry.Lookup(impl)
	if err != nil {
		return abci.Event{}, err
	}
	if next.Name() == current.Name() {
		return abci.Event{}, errorsmod.Wrapf(ErrInvalidRequest, "%s is already active", impl)
	}
	if err := CheckLayout(p.Layout, next.Layout()); err != nil {
		return abci.Event{}, err
	}
	if err := next.CheckData(p); err != nil {
		return abci.Event{}, err
	}

	from := p.Implementation
	p.Implementation = next.Name()
	p.Layout = append([]string(nil), next.Layout()...)

	k.logger.Info("pool upgraded", "from", from, "to", p.Implementation)
	return newEvent(EventTypeUpgraded, map[string]string{
		"from":   from,
		"to":     p.Implementation,
		"sender": caller,
	}), nil
}

// CheckLayout requires stored to be a prefix of next: fields may be appended
// but never removed, renamed or reordered.
func CheckLayout(stored, next []string) error {
	if len(next) < len(stored) {
		return errorsmod.Wrapf(ErrIncompatibleStorageLayout, "layout drops fields %s", strings.Join(stored[len(next):], ","))
	}
	for i, f := range stored {
		if next[i] != f {
			return errorsmod.Wrapf(ErrIncompatibleStorageLayout, "field %d is %q, stored as %q", i, next[i], f)
		}
	}
	return nil
}

// SetAdmission pauses or resumes joins. Only logic with admission control
// accepts it.
func (k Keeper) SetAdmission(st *state.State, caller string, paused bool) (abci.Event, error) {
	p := st.Pool
	if err := requireRole(p, RoleAdmin, caller); err != nil {
		return abci.Event{}, err
	}
	logic, err := k.ActiveLogic(p)
	if err != nil {
		return abci.Event{}, err
	}
	if !logic.AdmissionControl() {
		return abci.Event{}, errorsmod.Wrapf(ErrInvalidRequest, "%s has no admission control", logic.Name())
	}
	p.Params.AdmissionPaused = paused
	return newEvent(EventTypeAdmissionChanged, map[string]string{
		"paused": fmt.Sprintf("%t", paused),
		"sender": caller,
	}), nil
}
