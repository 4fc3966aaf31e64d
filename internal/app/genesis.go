package app

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sweepchain/internal/pool"
	"sweepchain/internal/state"
)

// GenesisAccount binds a pubkey to an address at genesis so it can sign from
// block 1.
type GenesisAccount struct {
	Address string `json:"address"`
	PubKey  []byte `json:"pubKey"`
	Balance uint64 `json:"balance,omitempty"`
}

// GenesisState is the app_state of the CometBFT genesis file. When Admin is
// set the pool is initialized at genesis; otherwise it waits for a
// pool/initialize tx.
type GenesisState struct {
	Admin           string `json:"admin,omitempty"`
	Implementation  string `json:"implementation,omitempty"`
	Stake           uint64 `json:"stake,omitempty"`
	IntervalSecs    uint64 `json:"intervalSecs,omitempty"`
	MaxParticipants uint32 `json:"maxParticipants,omitempty"`

	Accounts          []GenesisAccount `json:"accounts,omitempty"`
	BlockedRecipients []string         `json:"blockedRecipients,omitempty"`
}

func DefaultGenesis(admin string) GenesisState {
	return GenesisState{
		Admin:          admin,
		Implementation: pool.DefaultImplementation,
		Stake:          pool.DefaultStake,
		IntervalSecs:   pool.DefaultIntervalSecs,
	}
}

func (g GenesisState) Validate() error {
	seen := map[string]bool{}
	for i, acct := range g.Accounts {
		if acct.Address == "" {
			return fmt.Errorf("accounts[%d]: missing address", i)
		}
		if isModuleAccount(acct.Address) {
			return fmt.Errorf("accounts[%d]: %s is a module account", i, acct.Address)
		}
		if seen[acct.Address] {
			return fmt.Errorf("accounts[%d]: duplicate address %s", i, acct.Address)
		}
		seen[acct.Address] = true
		if len(acct.PubKey) != 0 && len(acct.PubKey) != ed25519.PublicKeySize {
			return fmt.Errorf("accounts[%d]: pubKey must be %d bytes", i, ed25519.PublicKeySize)
		}
	}
	for i, addr := range g.BlockedRecipients {
		if addr == "" {
			return fmt.Errorf("blockedRecipients[%d]: empty address", i)
		}
	}
	return nil
}

func decodeGenesis(b []byte) (GenesisState, error) {
	var g GenesisState
	if err := json.Unmarshal(b, &g); err != nil {
		return GenesisState{}, fmt.Errorf("decode app_state: %w", err)
	}
	return g, g.Validate()
}

func applyGenesis(st *state.State, k pool.Keeper, g GenesisState, env pool.Env) error {
	accts := append([]GenesisAccount(nil), g.Accounts...)
	sort.Slice(accts, func(i, j int) bool { return accts[i].Address < accts[j].Address })
	for _, acct := range accts {
		if len(acct.PubKey) != 0 {
			st.AccountKeys[acct.Address] = append([]byte(nil), acct.PubKey...)
		}
		if err := st.Credit(acct.Address, acct.Balance); err != nil {
			return fmt.Errorf("genesis balance for %s: %w", acct.Address, err)
		}
	}
	for _, addr := range g.BlockedRecipients {
		st.Blocked[addr] = true
	}
	if g.Admin == "" {
		return nil
	}
	_, err := k.Initialize(st, g.Admin, pool.InitRequest{
		Implementation:  g.Implementation,
		Stake:           g.Stake,
		IntervalSecs:    g.IntervalSecs,
		MaxParticipants: g.MaxParticipants,
	}, env)
	return err
}

func isModuleAccount(addr string) bool {
	return strings.HasPrefix(addr, "module/")
}
