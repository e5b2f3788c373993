// Package records persists the wallet's offline transaction records in the
// local SQLite store.
package records

import (
	"context"

	"github.com/offpay/chainsync/internal/client/models"
)

type Repository interface {
	Insert(ctx context.Context, rec *models.Record) error
	GetAll(ctx context.Context) ([]*models.Record, error)
	GetAllPending(ctx context.Context) ([]*models.Record, error)
	SetStatus(ctx context.Context, id, status, syncError string) error
}
