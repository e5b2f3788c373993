package conflicts

import (
	"context"

	"github.com/offpay/chainsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.SyncConflict) error
	Update(ctx context.Context, c *models.SyncConflict) error
	GetByID(ctx context.Context, id string) (*models.SyncConflict, error)
	SelectByUser(ctx context.Context, userID string, onlyOpen bool) ([]*models.SyncConflict, error)
}
