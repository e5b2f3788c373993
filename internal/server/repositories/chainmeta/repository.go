package chainmeta

import (
	"context"

	"github.com/offpay/chainsync/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.ChainMetadata, error)
	Create(ctx context.Context, meta *models.ChainMetadata) error
	Update(ctx context.Context, meta *models.ChainMetadata) error
}
