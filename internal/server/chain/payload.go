package chain

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/cryptox"
	"github.com/offpay/chainsync/internal/server/models"
)

// KeyResolver supplies the registered key material for a sender. Returns
// common.ErrorNotFound for unknown senders and common.ErrDeviceRevoked for
// revoked devices.
type KeyResolver interface {
	DeviceKeys(ctx context.Context, userID string) (ed25519.PublicKey, []byte, error)
}

// NonceIndex is the persisted index of every nonce ever accepted, across all
// users. The lookup is the only I/O a payload validation performs.
type NonceIndex interface {
	ExistsByNonce(ctx context.Context, nonce string) (bool, error)
}

// ValidatePayload runs the per-record checks that are independent of chain
// position: signature, nonce freshness, timestamp bounds, amount sanity and
// a structural check of the encrypted payload.
//
// Rule violations are accumulated in the result; only infrastructure
// failures (nonce index unreachable) are returned as errors and abort the
// batch.
func ValidatePayload(ctx context.Context, rec *models.OfflineTransactionRecord, keys KeyResolver, nonces NonceIndex, now time.Time, cfg ValidationConfig) (PayloadValidationResult, error) {

	result := PayloadValidationResult{
		SignatureValid: true,
		NonceUnique:    true,
		TimestampValid: true,
		AmountValid:    true,
	}

	addError := func(code ErrorCode, msg string) {
		result.Errors = append(result.Errors, Issue{Code: code, Message: msg})
	}
	addWarning := func(code ErrorCode, msg string) {
		result.Warnings = append(result.Warnings, Issue{Code: code, Message: msg})
	}

	// Signature. A missing or revoked device key fails verification the same
	// way a bad signature does; the sender cannot prove authorship either way.
	pubKey, payloadKey, err := keys.DeviceKeys(ctx, rec.SenderID)
	switch {
	case err == nil:
		if !cryptox.VerifyHashSignature(pubKey, rec.TransactionHash, rec.Signature) {
			result.SignatureValid = false
			addError(CodeInvalidSignature, "signature does not verify against registered device key")
		}
	case errors.Is(err, common.ErrorNotFound):
		result.SignatureValid = false
		addError(CodeInvalidSignature, "no registered device key for sender")
	case errors.Is(err, common.ErrDeviceRevoked):
		result.SignatureValid = false
		addError(CodeInvalidSignature, "device key revoked")
	default:
		return result, fmt.Errorf("resolving device key: %w", err)
	}

	// Nonce freshness against the global accepted index.
	used, err := nonces.ExistsByNonce(ctx, rec.Nonce)
	if err != nil {
		return result, fmt.Errorf("nonce lookup: %w", err)
	}
	if used {
		result.NonceUnique = false
		addError(CodeNonceReused, "nonce already accepted, replay suspected")
	}

	// Timestamp bounds. Outside the primary window but inside the widened one
	// is a warning; beyond that it is an error.
	oldest := now.Add(-cfg.MaxAge)
	newest := now.Add(cfg.FutureTolerance)
	ts := rec.Timestamp
	switch {
	case ts.Before(oldest):
		if ts.Before(oldest.Add(-cfg.SecondaryTolerance)) {
			result.TimestampValid = false
			addError(CodeTimestampInvalid, fmt.Sprintf("timestamp older than allowed window (%s)", cfg.MaxAge))
		} else {
			addWarning(CodeTimestampInvalid, "timestamp near the age limit")
		}
	case ts.After(newest):
		if ts.After(newest.Add(cfg.SecondaryTolerance)) {
			result.TimestampValid = false
			addError(CodeTimestampInvalid, fmt.Sprintf("timestamp too far in the future (tolerance %s)", cfg.FutureTolerance))
		} else {
			addWarning(CodeTimestampInvalid, "timestamp slightly ahead of server clock")
		}
	}

	// Amount sanity.
	if !rec.Amount.IsPositive() {
		result.AmountValid = false
		addError(CodeInvalidAmount, "amount must be positive")
	} else if rec.Amount.Exponent() < -cfg.MaxFractionDigits {
		result.AmountValid = false
		addError(CodeInvalidAmount, fmt.Sprintf("amount has more than %d fraction digits", cfg.MaxFractionDigits))
	}

	// Encrypted payload: confirm structural presence only, content stays
	// opaque to the server.
	if len(rec.EncryptedPayload) > 0 {
		result.PayloadPresent = true
		if len(payloadKey) > 0 && !cryptox.CheckPayloadStructure(rec.EncryptedPayload, rec.PayloadNonce, payloadKey) {
			addWarning(CodePayloadMalformed, "encrypted payload failed structural check")
		}
	}

	result.Valid = len(result.Errors) == 0

	return result, nil
}
