package codec

import (
	"encoding/json"
	"fmt"
)

// Tx type routes.
const (
	TypeAuthRegisterAccount = "auth/register_account"
	TypeBankMint            = "bank/mint"
	TypeBankSend            = "bank/send"

	TypePoolInitialize   = "pool/initialize"
	TypePoolJoin         = "pool/join"
	TypePoolBuyTicket    = "pool/buy_ticket"
	TypePoolDistribute   = "pool/distribute"
	TypePoolGrantRole    = "pool/grant_role"
	TypePoolRevokeRole   = "pool/revoke_role"
	TypePoolSetAdmission = "pool/set_admission"
	TypePoolUpgrade      = "pool/upgrade"
)

// TxEnvelope is the transaction container.
//
// CometBFT transactions are opaque bytes; they are JSON-encoded envelopes
// routed by Type. Pool and bank txs must be signed:
// - Nonce: decimal u64, must strictly increase per signer.
// - Signer: account address of the caller.
// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Auth ----

type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Bank ----

// BankMintTx is the devnet faucet; only admins may mint.
type BankMintTx struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Pool ----

type PoolInitializeTx struct {
	Caller          string `json:"caller"`
	Implementation  string `json:"implementation,omitempty"` // default sweepstake/v1
	Stake           uint64 `json:"stake,omitempty"`
	IntervalSecs    uint64 `json:"intervalSecs,omitempty"`
	MaxParticipants uint32 `json:"maxParticipants,omitempty"`
}

type PoolJoinTx struct {
	Participant string `json:"participant"`
	Amount      uint64 `json:"amount"` // attached value; must equal the stake
}

type PoolBuyTicketTx struct {
	Participant string   `json:"participant"`
	Amount      uint64   `json:"amount"`
	Numbers     []uint32 `json:"numbers"` // 7 distinct values in [1,49], order significant
}

type PoolDistributeTx struct {
	Caller string `json:"caller"`
}

type PoolRoleTx struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"` // admin|automation
	Account string `json:"account"`
}

type PoolSetAdmissionTx struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type PoolUpgradeTx struct {
	Caller         string `json:"caller"`
	Implementation string `json:"implementation"`
}
