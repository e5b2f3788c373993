package chain

import (
	"time"

	"github.com/offpay/chainsync/internal/server/models"
)

// ResolveConflicts applies the automatic resolution policy to every
// unresolved conflict, mutating the slice in place and returning it.
//
// Policy per type:
//
//	DOUBLE_SPEND        reject (only duplicates past the earliest are filed)
//	INSUFFICIENT_FUNDS  escalate to PENDING_USER
//	INVALID_HASH        reject, record is permanently invalid
//	INVALID_SIGNATURE   reject; the caller raises a security alert
//	NONCE_REUSED        reject automatically, replay attempt
//	CHAIN_BROKEN        escalate for manual chain repair; the caller trips
//	                    the per-user circuit breaker
//	TIMESTAMP_INVALID   auto-resolve the warning tier, reject the rest
//	INVALID_AMOUNT      reject
//
// Resolution is deterministic and idempotent: a conflict that already left
// UNRESOLVED is never touched again.
func ResolveConflicts(conflicts []*models.SyncConflict, now time.Time) []*models.SyncConflict {

	for _, c := range conflicts {

		if c.Resolution != models.ResolutionUnresolved {
			continue
		}

		switch c.Type {

		case models.ConflictDoubleSpend:
			reject(c, now)

		case models.ConflictInsufficientFunds:
			c.Resolution = models.ResolutionPendingUser

		case models.ConflictInvalidHash, models.ConflictInvalidSignature,
			models.ConflictNonceReused, models.ConflictInvalidAmount:
			reject(c, now)

		case models.ConflictChainBroken:
			c.Resolution = models.ResolutionPendingUser

		case models.ConflictTimestampInvalid:
			if c.Priority <= models.PriorityWarning {
				c.Resolution = models.ResolutionAutoResolved
				resolvedAt(c, now)
			} else {
				reject(c, now)
			}
		}
	}

	return conflicts
}

func reject(c *models.SyncConflict, now time.Time) {
	c.Resolution = models.ResolutionRejected
	resolvedAt(c, now)
}

func resolvedAt(c *models.SyncConflict, now time.Time) {
	t := now
	c.ResolvedAt = &t
}
