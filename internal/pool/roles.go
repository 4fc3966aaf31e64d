package pool

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"sweepchain/internal/state"
)

const (
	// RoleAdmin may upgrade the implementation, manage roles and admission.
	RoleAdmin = "admin"
	// RoleAutomation may trigger distributions.
	RoleAutomation = "automation"
)

func validRole(role string) bool {
	return role == RoleAdmin || role == RoleAutomation
}

func HasRole(p *state.PoolState, role, account string) bool {
	if p == nil || account == "" {
		return false
	}
	for _, a := range p.Roles[role] {
		if a == account {
			return true
		}
	}
	return false
}

// requireRole is the guard every privileged operation runs first.
func requireRole(p *state.PoolState, role, caller string) error {
	if !HasRole(p, role, caller) {
		return errorsmod.Wrapf(ErrUnauthorized, "%q lacks role %q", caller, role)
	}
	return nil
}

func addRole(p *state.PoolState, role, account string) bool {
	if HasRole(p, role, account) {
		return false
	}
	accts := append(p.Roles[role], account)
	sort.Strings(accts)
	p.Roles[role] = accts
	return true
}

func removeRole(p *state.PoolState, role, account string) bool {
	accts := p.Roles[role]
	for i, a := range accts {
		if a == account {
			p.Roles[role] = append(accts[:i:i], accts[i+1:]...)
			return true
		}
	}
	return false
}

// RolesOf lists the roles held by account in a stable order.
func RolesOf(p *state.PoolState, account string) []string {
	out := []string{}
	for _, role := range []string{RoleAdmin, RoleAutomation} {
		if HasRole(p, role, account) {
			out = append(out, role)
		}
	}
	return out
}

func (k Keeper) GrantRole(st *state.State, caller, role, account string) (abci.Event, error) {
	p := st.Pool
	if err := requireRole(p, RoleAdmin, caller); err != nil {
		return abci.Event{}, err
	}
	if !validRole(role) {
		return abci.Event{}, errorsmod.Wrapf(ErrInvalidRequest, "unknown role %q", role)
	}
	if account == "" {
		return abci.Event{}, errorsmod.Wrap(ErrInvalidRequest, "missing account")
	}
	addRole(p, role, account)
	return newEvent(EventTypeRoleGranted, map[string]string{
		"role":    role,
		"account": account,
		"sender":  caller,
	}), nil
}

func (k Keeper) RevokeRole(st *state.State, caller, role, account string) (abci.Event, error) {
	p := st.Pool
	if err := requireRole(p, RoleAdmin, caller); err != nil {
		return abci.Event{}, err
	}
	if !validRole(role) {
		return abci.Event{}, errorsmod.Wrapf(ErrInvalidRequest, "unknown role %q", role)
	}
	if !HasRole(p, role, account) {
		return abci.Event{}, errorsmod.Wrapf(ErrInvalidRequest, "%q does not hold role %q", account, role)
	}
	if role == RoleAdmin && len(p.Roles[RoleAdmin]) == 1 {
		return abci.Event{}, errorsmod.Wrap(ErrInvalidRequest, "cannot revoke the last admin")
	}
	removeRole(p, role, account)
	return newEvent(EventTypeRoleRevoked, map[string]string{
		"role":    role,
		"account": account,
		"sender":  caller,
	}), nil
}
