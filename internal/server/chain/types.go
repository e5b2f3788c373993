// Package chain implements the verification core of the offline payment
// chain: batch integrity validation, per-record payload validation,
// double-spend replay and the conflict resolution policy. Everything in this
// package is CPU-bound and side-effect free; persistence and alerting live
// in the service layer.
package chain

import (
	"time"
)

// ErrorCode identifies a single validation rule violation.
type ErrorCode string

const (
	CodeDuplicateHash     ErrorCode = "DUPLICATE_HASH"
	CodeDuplicateNonce    ErrorCode = "DUPLICATE_NONCE"
	CodeInvalidGenesis    ErrorCode = "INVALID_GENESIS"
	CodeChainBroken       ErrorCode = "CHAIN_BROKEN"
	CodeInvalidHash       ErrorCode = "INVALID_HASH"
	CodeInvalidChronology ErrorCode = "INVALID_CHRONOLOGY"
	CodeInvalidSignature  ErrorCode = "INVALID_SIGNATURE"
	CodeNonceReused       ErrorCode = "NONCE_REUSED"
	CodeTimestampInvalid  ErrorCode = "TIMESTAMP_INVALID"
	CodeInvalidAmount     ErrorCode = "INVALID_AMOUNT"
	CodePayloadMalformed  ErrorCode = "PAYLOAD_MALFORMED"
)

// ChainError is one integrity violation, tagged with the offending record's
// position in the batch. Expected/Actual carry the mismatched values for
// link and hash failures.
type ChainError struct {
	Index         int       `json:"index"`
	TransactionID string    `json:"transaction_id"`
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	Expected      string    `json:"expected,omitempty"`
	Actual        string    `json:"actual,omitempty"`
}

// ChainValidationResult is the outcome of validating one ordered batch.
// Validation never stops at the first failure; Errors holds every violation
// found so the caller can proceed with the clean subset.
type ChainValidationResult struct {
	Valid        bool         `json:"valid"`
	Errors       []ChainError `json:"errors,omitempty"`
	ValidCount   int          `json:"valid_count"`
	InvalidCount int          `json:"invalid_count"`
}

// ImplicatedIndexes returns the set of batch positions named by at least one
// error. The orchestrator excludes these records from further processing.
func (r *ChainValidationResult) ImplicatedIndexes() map[int]struct{} {
	implicated := make(map[int]struct{}, len(r.Errors))
	for _, e := range r.Errors {
		implicated[e.Index] = struct{}{}
	}
	return implicated
}

// ValidationConfig carries the tunable bounds of payload validation. It is
// passed in explicitly; validators keep no ambient settings.
type ValidationConfig struct {
	// MaxAge is how far in the past a record timestamp may lie.
	MaxAge time.Duration
	// FutureTolerance absorbs device clock skew ahead of server time.
	FutureTolerance time.Duration
	// SecondaryTolerance widens both bounds; a timestamp outside the primary
	// window but inside the widened one is a warning, not an error.
	SecondaryTolerance time.Duration
	// MaxFractionDigits bounds the decimal scale of amounts (2 for cents).
	MaxFractionDigits int32
}

// DefaultValidationConfig returns the production defaults: 30 days of
// history, 5 minutes of clock skew, a 24h secondary window, 2 fraction
// digits.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxAge:             30 * 24 * time.Hour,
		FutureTolerance:    5 * time.Minute,
		SecondaryTolerance: 24 * time.Hour,
		MaxFractionDigits:  2,
	}
}

// Issue is a single payload validation finding.
type Issue struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// PayloadValidationResult is the outcome of validating one record
// independent of its chain position. Warnings do not make the record
// invalid.
type PayloadValidationResult struct {
	Valid          bool    `json:"valid"`
	Errors         []Issue `json:"errors,omitempty"`
	Warnings       []Issue `json:"warnings,omitempty"`
	SignatureValid bool    `json:"signature_valid"`
	NonceUnique    bool    `json:"nonce_unique"`
	TimestampValid bool    `json:"timestamp_valid"`
	AmountValid    bool    `json:"amount_valid"`
	PayloadPresent bool    `json:"payload_present"`
}
