package chain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/server/models"
)

// makeRecord builds a correctly hashed record linked to prev.
func makeRecord(t *testing.T, sender, recipient, amount string, ts time.Time, prev string) *models.OfflineTransactionRecord {
	t.Helper()

	nonce, err := common.MakeRandHexString(32)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}

	rec := &models.OfflineTransactionRecord{
		ID:           uuid.NewString(),
		SenderID:     sender,
		RecipientID:  recipient,
		Amount:       decimal.RequireFromString(amount),
		Timestamp:    ts,
		Nonce:        nonce,
		PreviousHash: prev,
		SyncStatus:   models.SyncStatusPending,
	}
	rec.TransactionHash = rec.ComputeHash()
	return rec
}

// makeChain builds a valid chain of debits from sender, one minute apart,
// anchored at the genesis hash.
func makeChain(t *testing.T, sender, recipient string, amounts []string, start time.Time) []*models.OfflineTransactionRecord {
	t.Helper()

	prev := common.GenesisHash
	records := make([]*models.OfflineTransactionRecord, 0, len(amounts))
	for i, a := range amounts {
		rec := makeRecord(t, sender, recipient, a, start.Add(time.Duration(i)*time.Minute), prev)
		prev = rec.TransactionHash
		records = append(records, rec)
	}
	return records
}
