// Package wallet persists the wallet's single-row state: device keys and the
// local chain head.
package wallet

import (
	"context"

	"github.com/offpay/chainsync/internal/client/models"
)

type Repository interface {
	// Load returns the wallet state, or common.ErrorNotFound before Init.
	Load(ctx context.Context) (*models.WalletState, error)
	Save(ctx context.Context, state *models.WalletState) error
	UpdateHead(ctx context.Context, headHash string) error
}
