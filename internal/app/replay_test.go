package app

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/require"

	"sweepchain/internal/codec"
	"sweepchain/internal/pool"
	"sweepchain/internal/state"
)

func TestReplayProtection_AccountSigned(t *testing.T) {
	const height = int64(1)
	a := newGenesisApp(t, nil)

	tx := txBytesSigned(t, "bank/send", map[string]any{"from": "alice", "to": "bob", "amount": 1}, "alice")
	mustOk(t, a.deliverTx(tx, height, at(1)))

	res := a.deliverTx(tx, height, at(1))
	if res.Code == 0 {
		t.Fatalf("expected replay to be rejected")
	}
	if !strings.Contains(res.Log, "replayed tx.nonce") {
		t.Fatalf("expected replay log to mention nonce, got %q", res.Log)
	}
	if got := a.st.Balance("bob"); got != 100_001 {
		t.Fatalf("replay moved funds: bob=%d", got)
	}
}

func TestReplayProtection_JoinCannotBeReplayedIntoNextRound(t *testing.T) {
	a := newGenesisApp(t, nil)

	tx := joinTx(t, "alice")
	mustOk(t, a.deliverTx(tx, 1, at(1)))
	mustOk(t, a.deliverTx(distributeTx(t, "admin"), 2, at(600)))

	res := a.deliverTx(tx, 3, at(601))
	if !strings.Contains(res.Log, "replayed tx.nonce") {
		t.Fatalf("expected replayed join to be rejected, got code=%d log=%q", res.Code, res.Log)
	}
	if n := len(a.st.Pool.Entries); n != 0 {
		t.Fatalf("replayed join admitted: entries=%d", n)
	}
}

func TestReplayProtection_RejectsNonNumericNonce(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	pub, priv := DevKey("alice")
	value := map[string]any{"account": "alice", "pubKey": []byte(pub)}
	valueBytes := mustMarshal(t, value)

	nonce := "not-a-number"
	msg := SignBytes("auth/register_account", valueBytes, nonce, "alice")
	sig := ed25519.Sign(priv, msg)
	env := codec.TxEnvelope{
		Type:   "auth/register_account",
		Value:  valueBytes,
		Nonce:  nonce,
		Signer: "alice",
		Sig:    sig,
	}

	res := a.deliverTx(mustMarshal(t, env), height, 0)
	if res.Code == 0 {
		t.Fatalf("expected non-numeric nonce to be rejected")
	}
	if !strings.Contains(res.Log, "invalid tx.nonce") {
		t.Fatalf("expected log to mention invalid tx.nonce, got %q", res.Log)
	}
}

func TestRegisterAccount_BindsKeyOnce(t *testing.T) {
	a := newTestApp(t)

	pub, _ := DevKey("dave")
	mustOk(t, a.deliverTx(txBytesSigned(t, "auth/register_account", map[string]any{
		"account": "dave",
		"pubKey":  []byte(pub),
	}, "dave"), 1, 0))

	other, _ := DevKey("mallory")
	_, malloryPriv := DevKey("mallory")
	tx, err := SignTx(malloryPriv, "auth/register_account", map[string]any{
		"account": "dave",
		"pubKey":  []byte(other),
	}, testNonce.Add(1), "dave")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res := a.deliverTx(tx, 1, 0)
	if res.Code == 0 {
		t.Fatalf("expected re-registration to be rejected")
	}
	if string(a.st.AccountKeys["dave"]) != string(pub) {
		t.Fatalf("account key replaced")
	}
}

func TestReplayProtection_FailedTxCannotBeReplayedLater(t *testing.T) {
	a := newGenesisApp(t, func(g *GenesisState) {
		g.Accounts = append(g.Accounts, devAccount("dave", 0))
	})

	// Fails while dave is unfunded.
	tx := joinTx(t, "dave")
	res := a.deliverTx(tx, 1, at(1))
	if res.Code == 0 {
		t.Fatalf("expected unfunded join to fail")
	}

	a.st.Accounts["dave"] = pool.DefaultStake
	res = a.deliverTx(tx, 2, at(2))
	if !strings.Contains(res.Log, "replayed tx.nonce") {
		t.Fatalf("expected rebroadcast of failed join to be rejected, got code=%d log=%q", res.Code, res.Log)
	}
	if n := len(a.st.Pool.Entries); n != 0 {
		t.Fatalf("rebroadcast join admitted: entries=%d", n)
	}
}

func TestRegisterAccount_RejectsModuleAccounts(t *testing.T) {
	a := newGenesisApp(t, nil)
	mustOk(t, a.deliverTx(joinTx(t, "alice"), 1, at(1)))
	mustOk(t, a.deliverTx(joinTx(t, "bob"), 1, at(1)))

	pub, priv := DevKey("mallory")
	reg, err := SignTx(priv, "auth/register_account", map[string]any{
		"account": state.PoolAccount,
		"pubKey":  []byte(pub),
	}, testNonce.Add(1), state.PoolAccount)
	require.NoError(t, err)
	requireCode(t, a.deliverTx(reg, 2, at(2)), pool.ErrUnauthorized)
	require.Empty(t, a.st.AccountKeys[state.PoolAccount])

	// Even with a key planted, the pool account cannot be a sender.
	a.st.AccountKeys[state.PoolAccount] = append([]byte(nil), pub...)
	send, err := SignTx(priv, "bank/send", map[string]any{
		"from":   state.PoolAccount,
		"to":     "mallory",
		"amount": 2 * pool.DefaultStake,
	}, testNonce.Add(1), state.PoolAccount)
	require.NoError(t, err)
	requireCode(t, a.deliverTx(send, 2, at(2)), pool.ErrUnauthorized)

	require.Equal(t, 2*pool.DefaultStake, a.st.PoolBalance())
	require.Zero(t, a.st.Balance("mallory"))
	require.Len(t, a.st.Pool.Entries, 2)

	check, err := a.CheckTx(context.Background(), &abci.CheckTxRequest{Tx: reg})
	require.NoError(t, err)
	require.NotZero(t, check.Code)
}
