package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"

	errorsmod "cosmossdk.io/errors"

	"sweepchain/internal/codec"
	"sweepchain/internal/pool"
	"sweepchain/internal/state"
)

const txAuthDomainV1 = "sweepchain/tx/v1"

// SignBytes is the message an envelope signature covers.
func SignBytes(typ string, value []byte, nonce string, signer string) []byte {
	// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV1)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV1)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

// SignTx builds the JSON envelope for value, signed by priv as signer.
func SignTx(priv ed25519.PrivateKey, typ string, value any, nonce uint64, signer string) ([]byte, error) {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode tx value: %w", err)
	}
	n := strconv.FormatUint(nonce, 10)
	env := codec.TxEnvelope{
		Type:   typ,
		Value:  valueBytes,
		Nonce:  n,
		Signer: signer,
		Sig:    ed25519.Sign(priv, SignBytes(typ, valueBytes, n, signer)),
	}
	return json.Marshal(env)
}

// DevKey derives a deterministic Ed25519 key from name. Devnet and tests only.
func DevKey(name string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("sweepchain/devkey/v1:" + name))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return fmt.Errorf("missing tx.nonce")
	}
	if env.Signer == "" {
		return fmt.Errorf("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return fmt.Errorf("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

func requireRegisterAccountAuth(env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) error {
	if msg.Account == "" {
		return fmt.Errorf("missing account")
	}
	if isModuleAccount(msg.Account) {
		return fmt.Errorf("module account %q cannot hold a key", msg.Account)
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != msg.Account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	msgBytes := SignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(msg.PubKey), msgBytes, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	if account == "" {
		return fmt.Errorf("missing account")
	}
	if isModuleAccount(account) {
		return fmt.Errorf("module account %q cannot sign", account)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("account %q missing pubKey (auth/register_account required)", account)
	}
	msg := SignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func parseNonce(env codec.TxEnvelope) (uint64, error) {
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tx.nonce %q: must be a decimal u64", env.Nonce)
	}
	return n, nil
}

func checkNonce(st *state.State, env codec.TxEnvelope) (uint64, error) {
	n, err := parseNonce(env)
	if err != nil {
		return 0, err
	}
	if last, ok := st.NonceMax[env.Signer]; ok && n <= last {
		return 0, fmt.Errorf("replayed tx.nonce: got %d, last accepted %d", n, last)
	}
	return n, nil
}

// authenticate verifies the envelope against account and consumes its nonce.
func authenticate(st *state.State, env codec.TxEnvelope, account string) error {
	if err := requireAccountAuth(st, env, account); err != nil {
		return errorsmod.Wrap(pool.ErrUnauthorized, err.Error())
	}
	n, err := checkNonce(st, env)
	if err != nil {
		return errorsmod.Wrap(pool.ErrUnauthorized, err.Error())
	}
	st.NonceMax[env.Signer] = n
	return nil
}

// burnNonce records the nonce of a correctly signed tx that failed, so the
// same bytes cannot be rebroadcast once conditions change. It reports whether
// the nonce was recorded.
func burnNonce(st *state.State, env codec.TxEnvelope) bool {
	if err := requireAccountAuth(st, env, env.Signer); err != nil {
		return false
	}
	n, err := checkNonce(st, env)
	if err != nil {
		return false
	}
	st.NonceMax[env.Signer] = n
	return true
}
