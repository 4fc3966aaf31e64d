package app

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"sweepchain/internal/pool"
	"sweepchain/internal/state"
)

// RoundView is the /pool/round response.
type RoundView struct {
	RoundID            uint64     `json:"roundId"`
	StartTimestamp     int64      `json:"startTimestamp"`
	IntervalSecs       uint64     `json:"intervalSecs"`
	NextDistributionAt int64      `json:"nextDistributionAt"`
	Phase              pool.Phase `json:"phase"`
	Participants       int        `json:"participants"`
	Balance            uint64     `json:"balance"`
	Stake              uint64     `json:"stake"`
	Implementation     string     `json:"implementation"`
	AdmissionPaused    bool       `json:"admissionPaused,omitempty"`
	BlockTime          int64      `json:"blockTime"`
}

type BalanceView struct {
	RoundID uint64 `json:"roundId"`
	Balance uint64 `json:"balance"`
}

type ImplementationView struct {
	Implementation string   `json:"implementation"`
	Layout         []string `json:"layout"`
	Available      []string `json:"available"`
}

// WinningNumbersView carries the numbers drawn in the latest distributed
// round. Numbers is empty when that round used a single-winner logic.
type WinningNumbersView struct {
	RoundID uint64   `json:"roundId,omitempty"`
	Numbers []uint32 `json:"numbers"`
}

type AccountView struct {
	Address    string   `json:"address"`
	Balance    uint64   `json:"balance"`
	Registered bool     `json:"registered"`
	Nonce      uint64   `json:"nonce"`
	Roles      []string `json:"roles"`
}

// Query serves read-only views of committed state. A non-zero req.Height
// below the current height reads that committed version instead.
//
// Paths:
//   - /pool/round
//   - /pool/balance
//   - /pool/participants
//   - /pool/tickets
//   - /pool/params
//   - /pool/implementation
//   - /pool/history
//   - /pool/history/latest
//   - /pool/history/<roundId>
//   - /pool/winning-numbers
//   - /pool/roles/<addr>
//   - /account/<addr>
func (a *PoolApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.st
	if req.Height > 0 && req.Height < a.st.Height {
		past, err := a.store.LoadAt(req.Height)
		if err != nil {
			err = errorsmod.Wrap(pool.ErrInvalidRequest, err.Error())
			return &abci.QueryResponse{Codespace: pool.ModuleName, Code: pool.ErrInvalidRequest.ABCICode(), Log: err.Error(), Height: req.Height}, nil
		}
		st = past
	}

	v, err := a.query(st, strings.TrimSpace(req.Path))
	if err != nil {
		codespace, code, _ := errorsmod.ABCIInfo(err, false)
		return &abci.QueryResponse{Codespace: codespace, Code: code, Log: err.Error(), Height: st.Height}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return &abci.QueryResponse{Code: pool.ErrInternal.ABCICode(), Codespace: pool.ModuleName, Log: err.Error(), Height: st.Height}, nil
	}
	return &abci.QueryResponse{Code: 0, Key: []byte(req.Path), Value: b, Height: st.Height}, nil
}

func (a *PoolApp) query(st *state.State, path string) (any, error) {
	p := st.Pool
	switch {
	case path == "/pool/round":
		if !p.Initialized {
			return nil, pool.ErrNotInitialized
		}
		at, err := pool.NextDistributionAt(p)
		if err != nil {
			return nil, err
		}
		phase, err := pool.CurrentPhase(p, st.BlockTime)
		if err != nil {
			return nil, err
		}
		return RoundView{
			RoundID:            p.Round.ID,
			StartTimestamp:     p.Round.StartTimestamp,
			IntervalSecs:       p.Params.IntervalSecs,
			NextDistributionAt: at,
			Phase:              phase,
			Participants:       len(p.Entries),
			Balance:            st.PoolBalance(),
			Stake:              p.Params.Stake,
			Implementation:     p.Implementation,
			AdmissionPaused:    p.Params.AdmissionPaused,
			BlockTime:          st.BlockTime,
		}, nil

	case path == "/pool/balance":
		return BalanceView{RoundID: p.Round.ID, Balance: st.PoolBalance()}, nil

	case path == "/pool/participants":
		return pool.Participants(p), nil

	case path == "/pool/tickets":
		return p.Entries, nil

	case path == "/pool/params":
		return p.Params, nil

	case path == "/pool/implementation":
		return ImplementationView{
			Implementation: p.Implementation,
			Layout:         p.Layout,
			Available:      a.keeper.Registry().Names(),
		}, nil

	case path == "/pool/history":
		ids := make([]uint64, 0, len(p.History))
		for id := range p.History {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out := make([]*state.RewardRecord, 0, len(ids))
		for _, id := range ids {
			out = append(out, p.History[id])
		}
		return out, nil

	case path == "/pool/history/latest":
		rec := latestRecord(p)
		if rec == nil {
			return nil, errorsmod.Wrap(pool.ErrInvalidRequest, "no reward record yet")
		}
		return rec, nil

	case path == "/pool/winning-numbers":
		rec := latestRecord(p)
		if rec == nil {
			return WinningNumbersView{Numbers: []uint32{}}, nil
		}
		nums := rec.WinningNumbers
		if nums == nil {
			nums = []uint32{}
		}
		return WinningNumbersView{RoundID: rec.RoundID, Numbers: nums}, nil

	case strings.HasPrefix(path, "/pool/history/"):
		raw := strings.TrimPrefix(path, "/pool/history/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errorsmod.Wrapf(pool.ErrInvalidRequest, "invalid round id %q", raw)
		}
		rec, ok := p.History[id]
		if !ok {
			return nil, errorsmod.Wrapf(pool.ErrInvalidRequest, "no reward record for round %d", id)
		}
		return rec, nil

	case strings.HasPrefix(path, "/pool/roles/"):
		addr := strings.TrimPrefix(path, "/pool/roles/")
		return pool.RolesOf(p, addr), nil

	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		if addr == "" {
			return nil, errorsmod.Wrap(pool.ErrInvalidRequest, "missing address")
		}
		return AccountView{
			Address:    addr,
			Balance:    st.Balance(addr),
			Registered: len(st.AccountKeys[addr]) != 0,
			Nonce:      st.NonceMax[addr],
			Roles:      pool.RolesOf(p, addr),
		}, nil

	default:
		return nil, errorsmod.Wrapf(pool.ErrInvalidRequest, "unknown query path %q", path)
	}
}

func latestRecord(p *state.PoolState) *state.RewardRecord {
	var (
		latest   *state.RewardRecord
		latestID uint64
	)
	for id, rec := range p.History {
		if latest == nil || id > latestID {
			latest, latestID = rec, id
		}
	}
	return latest
}
