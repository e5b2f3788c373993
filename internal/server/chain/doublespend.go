package chain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/server/models"
)

// FlaggedRecord is a debit that would have overdrawn the running balance.
type FlaggedRecord struct {
	Index         int             `json:"index"`
	TransactionID string          `json:"transaction_id"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        string          `json:"reason"`
}

// DoubleSpendReport is the outcome of replaying a batch against a known
// balance.
type DoubleSpendReport struct {
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
	Flagged          []FlaggedRecord `json:"flagged,omitempty"`
}

// DetectDoubleSpending replays records in chronological order against
// lastKnownBalance. Debits (sender == userID) subtract, credits
// (recipient == userID) add. A debit that would drive the balance below zero
// is flagged and excluded from the running balance, so one bad record does
// not penalize later legitimate ones. A flagged record is withheld whole: a
// self-transfer whose debit was flagged contributes no credit either. Credits
// from other records always apply, even when an earlier debit from the same
// batch was flagged.
//
// Records are settled strictly first come, first served; the caller supplies
// them already ordered and already chain/payload validated.
func DetectDoubleSpending(userID string, lastKnownBalance decimal.Decimal, records []*models.OfflineTransactionRecord) DoubleSpendReport {

	report := DoubleSpendReport{}
	running := lastKnownBalance

	for i, rec := range records {

		if rec.SenderID == userID {
			after := running.Sub(rec.Amount)
			if after.IsNegative() {
				report.Flagged = append(report.Flagged, FlaggedRecord{
					Index:         i,
					TransactionID: rec.ID,
					BalanceBefore: running,
					BalanceAfter:  after,
					Reason:        fmt.Sprintf("debit %s exceeds available balance %s", rec.Amount, running),
				})
				continue
			}
			running = after
		}

		if rec.RecipientID == userID {
			running = running.Add(rec.Amount)
		}
	}

	report.ProjectedBalance = running

	return report
}
