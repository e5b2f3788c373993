package chain

import (
	"time"

	"github.com/google/uuid"

	"github.com/offpay/chainsync/internal/server/models"
)

// NewChainConflict files a conflict for one integrity error. Duplicate
// hash/nonce findings become DOUBLE_SPEND conflicts (the first occurrence in
// the batch is never flagged, so "keep earliest" is already decided here);
// anchor and link failures become CHAIN_BROKEN; a chronology violation is a
// data-quality TIMESTAMP_INVALID.
func NewChainConflict(userID string, rec *models.OfflineTransactionRecord, chainErr ChainError, detectedAt time.Time) *models.SyncConflict {

	c := &models.SyncConflict{
		ID:            uuid.NewString(),
		TransactionID: rec.ID,
		UserID:        userID,
		Resolution:    models.ResolutionUnresolved,
		DetectedAt:    detectedAt,
	}

	switch chainErr.Code {
	case CodeDuplicateHash, CodeDuplicateNonce:
		c.Type = models.ConflictDoubleSpend
		c.Priority = models.PriorityFinancial
		c.SuggestedResolution = "duplicate of an earlier record in the batch, reject"
	case CodeInvalidGenesis, CodeChainBroken:
		c.Type = models.ConflictChainBroken
		c.Priority = models.PrioritySecurity
		c.SuggestedResolution = "chain link broken, manual re-anchoring required"
		c.ExpectedPreviousHash = chainErr.Expected
		c.ActualPreviousHash = chainErr.Actual
	case CodeInvalidHash:
		c.Type = models.ConflictInvalidHash
		c.Priority = models.PriorityFinancial
		c.SuggestedResolution = "stored hash does not match record fields, reject"
		c.ExpectedPreviousHash = chainErr.Expected
		c.ActualPreviousHash = chainErr.Actual
	case CodeInvalidChronology:
		c.Type = models.ConflictTimestampInvalid
		c.Priority = models.PriorityDataQuality
		c.SuggestedResolution = "record out of chronological order, reject"
	}

	return c
}

// NewPayloadConflict files a conflict for one payload validation issue.
// Warning-tier timestamp findings get PriorityWarning, which the resolution
// engine auto-resolves; everything else rejects or escalates.
func NewPayloadConflict(userID string, rec *models.OfflineTransactionRecord, issue Issue, warning bool, detectedAt time.Time) *models.SyncConflict {

	c := &models.SyncConflict{
		ID:            uuid.NewString(),
		TransactionID: rec.ID,
		UserID:        userID,
		Resolution:    models.ResolutionUnresolved,
		DetectedAt:    detectedAt,
	}

	switch issue.Code {
	case CodeInvalidSignature:
		c.Type = models.ConflictInvalidSignature
		c.Priority = models.PrioritySecurity
		c.SuggestedResolution = "signature cannot be verified, reject and alert"
	case CodeNonceReused:
		c.Type = models.ConflictNonceReused
		c.Priority = models.PrioritySecurity
		c.SuggestedResolution = "this transfer was already processed"
	case CodeTimestampInvalid:
		c.Type = models.ConflictTimestampInvalid
		if warning {
			c.Priority = models.PriorityWarning
			c.SuggestedResolution = "timestamp within secondary tolerance, accept with annotation"
		} else {
			c.Priority = models.PriorityDataQuality
			c.SuggestedResolution = "timestamp outside allowed window, reject"
		}
	case CodeInvalidAmount:
		c.Type = models.ConflictInvalidAmount
		c.Priority = models.PriorityDataQuality
		c.SuggestedResolution = "amount fails sanity checks, reject"
	}

	return c
}

// NewInsufficientFundsConflict files a conflict for a debit flagged by the
// double-spend detector, capturing the balances around the attempted debit.
func NewInsufficientFundsConflict(userID string, flagged FlaggedRecord, detectedAt time.Time) *models.SyncConflict {

	before := flagged.BalanceBefore
	after := flagged.BalanceAfter

	return &models.SyncConflict{
		ID:                  uuid.NewString(),
		TransactionID:       flagged.TransactionID,
		UserID:              userID,
		Type:                models.ConflictInsufficientFunds,
		Resolution:          models.ResolutionUnresolved,
		Priority:            models.PriorityFinancial,
		SuggestedResolution: "needs review: balance insufficient at settlement time",
		ExpectedBalance:     &before,
		ActualBalance:       &after,
		DetectedAt:          detectedAt,
	}
}
