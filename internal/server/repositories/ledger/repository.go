package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/server/models"
)

type Repository interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) error
	InsertEntry(ctx context.Context, e *models.LedgerEntry) (bool, error)
	GetEntryByTxHash(ctx context.Context, txHash string) (*models.LedgerEntry, error)
}
