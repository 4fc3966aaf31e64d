package app

import (
	"bytes"
	"testing"

	"sweepchain/internal/pool"
)

func TestAtomicity_FailedPayoutLeavesRoundIntact(t *testing.T) {
	a := newGenesisApp(t, nil)
	mustOk(t, a.deliverTx(joinTx(t, "alice"), 1, at(1)))
	mustOk(t, a.deliverTx(joinTx(t, "bob"), 1, at(1)))
	// Any winner's credit overflows.
	a.st.Accounts["alice"] = ^uint64(0)
	a.st.Accounts["bob"] = ^uint64(0)

	before := hashWithoutNonces(t, a.st)
	nonceBefore := a.st.NonceMax["admin"]
	res := a.deliverTx(distributeTx(t, "admin"), 2, at(600))
	requireCode(t, res, pool.ErrPayoutTransferFailed)

	if !bytes.Equal(before, hashWithoutNonces(t, a.st)) {
		t.Fatalf("failed distribution mutated state")
	}
	if a.st.NonceMax["admin"] <= nonceBefore {
		t.Fatalf("failed signed tx did not consume its nonce")
	}
	if got := a.st.PoolBalance(); got != 2*pool.DefaultStake {
		t.Fatalf("pool balance changed: %d", got)
	}
	if _, ok := a.st.Pool.History[1]; ok {
		t.Fatalf("history written for failed distribution")
	}
}

func TestAtomicity_FailedTxOnlyBurnsNonce(t *testing.T) {
	a := newGenesisApp(t, nil)
	before := hashWithoutNonces(t, a.st)

	failing := [][]byte{
		txBytesSigned(t, "pool/join", map[string]any{"participant": "alice", "amount": 1}, "alice"),
		distributeTx(t, "admin"),
		distributeTx(t, "alice"),
		txBytesSigned(t, "pool/upgrade", map[string]any{"caller": "admin", "implementation": "nope/v1"}, "admin"),
		txBytesSigned(t, "pool/set_admission", map[string]any{"caller": "admin", "paused": true}, "admin"),
		txBytesSigned(t, "bank/send", map[string]any{"from": "alice", "to": "bob", "amount": 1_000_000}, "alice"),
		[]byte("not json"),
	}
	for i, tx := range failing {
		if res := a.deliverTx(tx, 1, at(1)); res.Code == 0 {
			t.Fatalf("tx %d unexpectedly succeeded", i)
		}
		if !bytes.Equal(before, hashWithoutNonces(t, a.st)) {
			t.Fatalf("tx %d mutated state", i)
		}
	}
}

func TestAtomicity_UnsignedFailureKeepsAppHash(t *testing.T) {
	a := newGenesisApp(t, nil)
	before := a.st.AppHash()

	_, mallory := DevKey("mallory")
	forged, err := SignTx(mallory, "pool/join", map[string]any{"participant": "alice", "amount": pool.DefaultStake}, testNonce.Add(1), "alice")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for i, tx := range [][]byte{forged, []byte("not json")} {
		if res := a.deliverTx(tx, 1, at(1)); res.Code == 0 {
			t.Fatalf("tx %d unexpectedly succeeded", i)
		}
	}
	if !bytes.Equal(before, a.st.AppHash()) {
		t.Fatalf("unauthenticated tx changed state")
	}
}
