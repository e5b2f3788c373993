package devices

import (
	"context"

	"github.com/offpay/chainsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, d *models.Device) error
	GetByUser(ctx context.Context, userID string) (*models.Device, error)
	Revoke(ctx context.Context, userID string) error
}
