package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"sweepchain/internal/codec"
	"sweepchain/internal/pool"
	"sweepchain/internal/state"
)

const (
	AppVersion uint64 = 1
)

// Options configure a PoolApp. Zero values select the defaults.
type Options struct {
	Logger     log.Logger
	Registry   *pool.Registry
	Randomness pool.RandomnessSource
	Events     *EventBus
}

// PoolApp is the ABCI application. It owns the pool storage for the lifetime
// of the chain; logic implementations are resolved from the storage on every
// tx.
type PoolApp struct {
	*abci.BaseApplication

	store      *state.Store
	keeper     pool.Keeper
	logger     log.Logger
	events     *EventBus
	randomness pool.RandomnessSource

	mu       sync.Mutex
	st       *state.State
	lastHash []byte

	// Block being finalized; reset at Commit.
	blockHash []byte
	proposer  []byte
	pending   []abci.Event
}

func New(store *state.Store, opts Options) (*PoolApp, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	events := opts.Events
	if events == nil {
		events = NewEventBus(logger)
	}
	st, err := store.Load()
	if err != nil {
		return nil, err
	}
	a := &PoolApp{
		BaseApplication: abci.NewBaseApplication(),
		store:           store,
		keeper:          pool.NewKeeper(opts.Registry, logger),
		logger:          logger.With("module", "app"),
		events:          events,
		randomness:      opts.Randomness,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *PoolApp) Events() *EventBus { return a.events }

func (a *PoolApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "sweepchain",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

// CheckTx validates the envelope, signature and nonce against committed state.
// Pool preconditions are left to FinalizeBlock, where the block time is known.
func (a *PoolApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	env, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return checkTxErr(errorsmod.Wrap(pool.ErrInvalidRequest, err.Error())), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if env.Type == codec.TypeAuthRegisterAccount {
		var msg codec.AuthRegisterAccountTx
		if err := decodeValue(env, &msg); err != nil {
			return checkTxErr(err), nil
		}
		if err := requireRegisterAccountAuth(env, msg); err != nil {
			return checkTxErr(errorsmod.Wrap(pool.ErrUnauthorized, err.Error())), nil
		}
	} else if err := requireAccountAuth(a.st, env, env.Signer); err != nil {
		return checkTxErr(errorsmod.Wrap(pool.ErrUnauthorized, err.Error())), nil
	}
	if _, err := checkNonce(a.st, env); err != nil {
		return checkTxErr(errorsmod.Wrap(pool.ErrUnauthorized, err.Error())), nil
	}
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *PoolApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.ChainID = req.ChainId
	a.st.BlockTime = req.Time.Unix()
	if len(req.AppStateBytes) > 0 {
		g, err := decodeGenesis(req.AppStateBytes)
		if err != nil {
			return nil, err
		}
		env := pool.Env{ChainID: req.ChainId, Height: req.InitialHeight, Time: req.Time.Unix()}
		if err := applyGenesis(a.st, a.keeper, g, env); err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
	}
	a.lastHash = a.st.AppHash()
	a.logger.Info("genesis applied", "chainId", req.ChainId, "initialized", a.st.Pool.Initialized)
	return &abci.InitChainResponse{AppHash: a.lastHash}, nil
}

func (a *PoolApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := req.Time.Unix()
	a.st.Height = req.Height
	a.st.BlockTime = now
	a.blockHash = req.Hash
	a.proposer = req.ProposerAddress

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, now)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *PoolApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, err := a.store.Save(a.st)
	if err != nil {
		// Halt loudly rather than diverge from the committed block.
		return nil, err
	}
	a.events.Publish(a.st.Height, a.pending)
	a.logger.Info("committed block", "height", a.st.Height, "events", len(a.pending),
		"appHash", fmt.Sprintf("%X", a.lastHash), "storeHash", fmt.Sprintf("%X", id.Hash))

	a.pending = nil
	a.blockHash = nil
	a.proposer = nil
	return &abci.CommitResponse{}, nil
}

// deliverTx executes one tx against a staged copy of the state and keeps the
// copy only if the tx succeeded. A failed tx that was correctly signed still
// consumes its nonce.
func (a *PoolApp) deliverTx(txBytes []byte, height int64, nowUnix int64) *abci.ExecTxResult {
	staged, err := a.st.Clone()
	if err != nil {
		return execTxErr(errorsmod.Wrap(pool.ErrInternal, err.Error()))
	}
	blk := pool.Env{
		ChainID:    staged.ChainID,
		Height:     height,
		Time:       nowUnix,
		BlockHash:  a.blockHash,
		Proposer:   a.proposer,
		Randomness: a.randomness,
	}

	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return execTxErr(errorsmod.Wrap(pool.ErrInvalidRequest, err.Error()))
	}
	events, err := a.execTx(staged, env, blk)
	if err != nil {
		burned := burnNonce(a.st, env)
		a.logger.Debug("tx rejected", "type", env.Type, "signer", env.Signer, "height", height, "nonceBurned", burned, "err", err.Error())
		return execTxErr(err)
	}

	a.st = staged
	a.pending = append(a.pending, events...)
	return &abci.ExecTxResult{Code: 0, Events: events}
}

func (a *PoolApp) execTx(st *state.State, env codec.TxEnvelope, blk pool.Env) ([]abci.Event, error) {
	k := a.keeper

	switch env.Type {
	case codec.TypeAuthRegisterAccount:
		var msg codec.AuthRegisterAccountTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := requireRegisterAccountAuth(env, msg); err != nil {
			return nil, errorsmod.Wrap(pool.ErrUnauthorized, err.Error())
		}
		if existing := st.AccountKeys[msg.Account]; len(existing) != 0 {
			return nil, errorsmod.Wrapf(pool.ErrInvalidRequest, "account %q already registered", msg.Account)
		}
		n, err := checkNonce(st, env)
		if err != nil {
			return nil, errorsmod.Wrap(pool.ErrUnauthorized, err.Error())
		}
		st.NonceMax[env.Signer] = n
		st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return one(okEvent("AccountRegistered", map[string]string{"account": msg.Account})), nil

	case codec.TypeBankMint:
		var msg codec.BankMintTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Caller); err != nil {
			return nil, err
		}
		if !pool.HasRole(st.Pool, pool.RoleAdmin, msg.Caller) {
			return nil, errorsmod.Wrapf(pool.ErrUnauthorized, "%q may not mint", msg.Caller)
		}
		if msg.To == "" || msg.Amount == 0 {
			return nil, errorsmod.Wrap(pool.ErrInvalidRequest, "missing to/amount")
		}
		if isModuleAccount(msg.To) || st.Blocked[msg.To] {
			return nil, errorsmod.Wrapf(pool.ErrInvalidRequest, "%s: %s", state.ErrRecipientBlocked, msg.To)
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return nil, errorsmod.Wrap(pool.ErrInvalidRequest, err.Error())
		}
		return one(okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})), nil

	case codec.TypeBankSend:
		var msg codec.BankSendTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.From); err != nil {
			return nil, err
		}
		if msg.To == "" || msg.Amount == 0 {
			return nil, errorsmod.Wrap(pool.ErrInvalidRequest, "missing to/amount")
		}
		// Module accounts only move funds through their own operations.
		if isModuleAccount(msg.From) {
			return nil, errorsmod.Wrapf(pool.ErrUnauthorized, "module account %s cannot send", msg.From)
		}
		if isModuleAccount(msg.To) {
			return nil, errorsmod.Wrapf(pool.ErrInvalidRequest, "%s: %s", state.ErrRecipientBlocked, msg.To)
		}
		if err := st.Transfer(msg.From, msg.To, msg.Amount); err != nil {
			return nil, errorsmod.Wrap(pool.ErrInvalidRequest, err.Error())
		}
		return one(okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})), nil

	case codec.TypePoolInitialize:
		var msg codec.PoolInitializeTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Caller); err != nil {
			return nil, err
		}
		ev, err := k.Initialize(st, msg.Caller, pool.InitRequest{
			Implementation:  msg.Implementation,
			Stake:           msg.Stake,
			IntervalSecs:    msg.IntervalSecs,
			MaxParticipants: msg.MaxParticipants,
		}, blk)
		return one(ev), err

	case codec.TypePoolJoin:
		var msg codec.PoolJoinTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Participant); err != nil {
			return nil, err
		}
		ev, err := k.Join(st, msg.Participant, msg.Amount)
		return one(ev), err

	case codec.TypePoolBuyTicket:
		var msg codec.PoolBuyTicketTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Participant); err != nil {
			return nil, err
		}
		ev, err := k.BuyTicket(st, msg.Participant, msg.Amount, msg.Numbers)
		return one(ev), err

	case codec.TypePoolDistribute:
		var msg codec.PoolDistributeTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Caller); err != nil {
			return nil, err
		}
		return k.Distribute(st, msg.Caller, blk)

	case codec.TypePoolGrantRole, codec.TypePoolRevokeRole:
		var msg codec.PoolRoleTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Caller); err != nil {
			return nil, err
		}
		if env.Type == codec.TypePoolGrantRole {
			ev, err := k.GrantRole(st, msg.Caller, msg.Role, msg.Account)
			return one(ev), err
		}
		ev, err := k.RevokeRole(st, msg.Caller, msg.Role, msg.Account)
		return one(ev), err

	case codec.TypePoolSetAdmission:
		var msg codec.PoolSetAdmissionTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Caller); err != nil {
			return nil, err
		}
		ev, err := k.SetAdmission(st, msg.Caller, msg.Paused)
		return one(ev), err

	case codec.TypePoolUpgrade:
		var msg codec.PoolUpgradeTx
		if err := decodeValue(env, &msg); err != nil {
			return nil, err
		}
		if err := authenticate(st, env, msg.Caller); err != nil {
			return nil, err
		}
		ev, err := k.Upgrade(st, msg.Caller, msg.Implementation)
		return one(ev), err

	default:
		return nil, errorsmod.Wrapf(pool.ErrInvalidRequest, "unknown tx type: %s", env.Type)
	}
}

func decodeValue(env codec.TxEnvelope, out any) error {
	if err := json.Unmarshal(env.Value, out); err != nil {
		return errorsmod.Wrapf(pool.ErrInvalidRequest, "bad %s value: %v", env.Type, err)
	}
	return nil
}

func one(ev abci.Event) []abci.Event {
	if ev.Type == "" {
		return nil
	}
	return []abci.Event{ev}
}

func okEvent(typ string, attrs map[string]string) abci.Event {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return ev
}

func execTxErr(err error) *abci.ExecTxResult {
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Codespace: codespace, Code: code, Log: err.Error()}
}

func checkTxErr(err error) *abci.CheckTxResponse {
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	return &abci.CheckTxResponse{Codespace: codespace, Code: code, Log: err.Error()}
}
