// Package models defines the wallet agent's local data model: the offline
// transaction records created on the device and the single-row wallet state
// holding the key material and the chain head.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/cryptox"
)

// Record statuses as tracked locally. The server reports the authoritative
// disposition after a sync; until then everything the wallet creates is
// PENDING.
const (
	StatusPending  = "PENDING"
	StatusSynced   = "SYNCED"
	StatusConflict = "CONFLICT"
	StatusFailed   = "FAILED"
)

// Record is one hash-linked payment created offline. The JSON shape matches
// what the sync server expects in a batch submission.
type Record struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"sender_id"`
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Nonce       string          `json:"nonce"`

	PreviousHash    string `json:"previous_hash"`
	TransactionHash string `json:"transaction_hash"`
	Signature       []byte `json:"signature"`

	EncryptedPayload []byte `json:"encrypted_payload,omitempty"`
	PayloadNonce     []byte `json:"payload_nonce,omitempty"`

	SyncStatus    string `json:"sync_status"`
	LastSyncError string `json:"-"`
}

// ComputeHash recomputes the transaction hash from the record's own fields,
// with the timestamp in canonical UTC RFC3339Nano form.
func (r *Record) ComputeHash() string {
	return cryptox.TransactionHash(
		r.SenderID,
		r.RecipientID,
		r.Amount.String(),
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Nonce,
		r.PreviousHash,
	)
}

// Payload is the private part of a payment, sealed with the device payload
// key before submission. The server never sees it in the clear.
type Payload struct {
	Memo string `json:"memo"`
}

// WalletState is the wallet's single-row identity: whose wallet this is, the
// Ed25519 signing key, the payload sealing key and the hash of the last
// record in the local chain.
type WalletState struct {
	UserID     string
	PrivateKey []byte
	PayloadKey []byte
	HeadHash   string
}
