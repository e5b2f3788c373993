package records

import (
	"context"
	"time"

	"github.com/offpay/chainsync/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, rec *models.OfflineTransactionRecord) error
	GetByID(ctx context.Context, id string) (*models.OfflineTransactionRecord, error)
	SelectPending(ctx context.Context, userID string) ([]*models.OfflineTransactionRecord, error)
	MarkSynced(ctx context.Context, id string, ledgerRef string, syncedAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkConflict(ctx context.Context, id string) error
	ExistsByHash(ctx context.Context, txHash string) (bool, error)
	ExistsByNonce(ctx context.Context, nonce string) (bool, error)
	ReserveNonce(ctx context.Context, nonce string, txHash string) error
}
