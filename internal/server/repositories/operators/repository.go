package operators

import (
	"context"

	"github.com/offpay/chainsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, op *models.Operator) (*models.Operator, error)
	GetByLogin(ctx context.Context, login string) (*models.Operator, error)
}
