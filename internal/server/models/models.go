// Package models defines the server-side data model of the offline payment
// chain: the hash-linked transaction record, per-user chain metadata, sync
// conflicts and the supporting ledger/identity entities.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/cryptox"
)

// SyncStatus is the lifecycle state of an offline transaction record.
type SyncStatus string

const (
	SyncStatusPending  SyncStatus = "PENDING"
	SyncStatusSynced   SyncStatus = "SYNCED"
	SyncStatusFailed   SyncStatus = "FAILED"
	SyncStatusConflict SyncStatus = "CONFLICT"
)

// OfflineTransactionRecord is one signed, hash-linked payment intent created
// on a disconnected device. The core fields are immutable once created; only
// the sync bookkeeping fields (SyncStatus, SyncAttempts, LastSyncError,
// SyncedAt, LedgerRef) change afterwards. Records are never deleted.
type OfflineTransactionRecord struct {
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

	SyncStatus    SyncStatus `json:"sync_status"`
	SyncAttempts  int        `json:"sync_attempts"`
	LastSyncError string     `json:"last_sync_error,omitempty"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
	LedgerRef     string     `json:"ledger_ref,omitempty"`
}

// CanonicalTimestamp returns the timestamp form that participates in the
// transaction hash. Always UTC so devices in different zones agree.
func (r *OfflineTransactionRecord) CanonicalTimestamp() string {
	return r.Timestamp.UTC().Format(time.RFC3339Nano)
}

// ComputeHash recomputes the transaction hash from the record's own fields.
// A stored TransactionHash that differs from this value means the record was
// tampered with after signing.
func (r *OfflineTransactionRecord) ComputeHash() string {
	return cryptox.TransactionHash(
		r.SenderID,
		r.RecipientID,
		r.Amount.String(),
		r.CanonicalTimestamp(),
		r.Nonce,
		r.PreviousHash,
	)
}

// ChainMetadata tracks per-user chain health. CurrentHeadHash always equals
// the transaction hash of the last accepted record; once ChainValid is false
// the chain refuses automatic syncs until an operator re-anchors it.
type ChainMetadata struct {
	UserID          string     `json:"user_id"`
	GenesisHash     string     `json:"genesis_hash"`
	CurrentHeadHash string     `json:"current_head_hash"`
	LastSyncedHash  string     `json:"last_synced_hash"`
	PendingCount    int        `json:"pending_count"`
	SyncedCount     int        `json:"synced_count"`
	FailedCount     int        `json:"failed_count"`
	ConflictCount   int        `json:"conflict_count"`
	ChainValid      bool       `json:"chain_valid"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	ValidationError string     `json:"validation_error,omitempty"`

	// Version supports optimistic concurrency on updates.
	Version int64 `json:"version"`
}

// ConflictType classifies a detected sync problem.
type ConflictType string

const (
	ConflictDoubleSpend       ConflictType = "DOUBLE_SPEND"
	ConflictInsufficientFunds ConflictType = "INSUFFICIENT_FUNDS"
	ConflictInvalidHash       ConflictType = "INVALID_HASH"
	ConflictInvalidSignature  ConflictType = "INVALID_SIGNATURE"
	ConflictNonceReused       ConflictType = "NONCE_REUSED"
	ConflictChainBroken       ConflictType = "CHAIN_BROKEN"
	ConflictTimestampInvalid  ConflictType = "TIMESTAMP_INVALID"
	ConflictInvalidAmount     ConflictType = "INVALID_AMOUNT"
)

// ResolutionStatus is the lifecycle state of a SyncConflict.
type ResolutionStatus string

const (
	ResolutionUnresolved     ResolutionStatus = "UNRESOLVED"
	ResolutionAutoResolved   ResolutionStatus = "AUTO_RESOLVED"
	ResolutionManualResolved ResolutionStatus = "MANUAL_RESOLVED"
	ResolutionRejected       ResolutionStatus = "REJECTED"
	ResolutionPendingUser    ResolutionStatus = "PENDING_USER"
)

// Priority tiers. Security-relevant conflicts always outrank financial and
// data-quality ones.
const (
	PrioritySecurity    = 5
	PriorityFinancial   = 4
	PriorityDataQuality = 3
	PriorityWarning     = 2
)

// SyncConflict is one persisted validation failure. Created by the
// validators/detector, mutated only by the resolution engine or an operator.
type SyncConflict struct {
	ID                   string           `json:"id"`
	TransactionID        string           `json:"transaction_id"`
	UserID               string           `json:"user_id"`
	Type                 ConflictType     `json:"type"`
	Resolution           ResolutionStatus `json:"resolution"`
	Priority             int              `json:"priority"`
	SuggestedResolution  string           `json:"suggested_resolution,omitempty"`
	ExpectedBalance      *decimal.Decimal `json:"expected_balance,omitempty"`
	ActualBalance        *decimal.Decimal `json:"actual_balance,omitempty"`
	ExpectedPreviousHash string           `json:"expected_previous_hash,omitempty"`
	ActualPreviousHash   string           `json:"actual_previous_hash,omitempty"`
	DetectedAt           time.Time        `json:"detected_at"`
	ResolvedAt           *time.Time       `json:"resolved_at,omitempty"`
}

// SecurityRelevant reports whether the conflict belongs to the security tier
// (forgery/replay/chain tampering). These are never auto-silenced and always
// reach the audit channel.
func (c *SyncConflict) SecurityRelevant() bool {
	switch c.Type {
	case ConflictInvalidSignature, ConflictNonceReused, ConflictChainBroken:
		return true
	}
	return false
}

// Device is a registered wallet device identity: the Ed25519 key records are
// signed with and the AES key sealing the optional payload.
type Device struct {
	UserID       string    `json:"user_id"`
	PublicKey    []byte    `json:"public_key"`
	PayloadKey   []byte    `json:"-"`
	RegisteredAt time.Time `json:"registered_at"`
	Revoked      bool      `json:"revoked"`
}

// Operator is a back-office account allowed to review conflicts and repair
// chains. Passwords are stored as Argon2id hashes.
type Operator struct {
	ID           string
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}

// Account is a ledger balance row.
type Account struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// LedgerEntry is one committed movement in the authoritative ledger. TxHash
// carries a unique constraint and doubles as the commit idempotency key.
type LedgerEntry struct {
	ID          string          `json:"id"`
	TxHash      string          `json:"tx_hash"`
	SenderID    string          `json:"sender_id"`
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	PostedAt    time.Time       `json:"posted_at"`
}
