// Package devices provides the PostgreSQL-backed store for registered wallet
// device identities.
package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/models"
)

// PostgresRepository implements device storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create registers a device. One device per user: a second registration for
// the same user returns common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, d *models.Device) error {
	query := `
		INSERT INTO devices (user_id, public_key, payload_key, registered_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query,
		d.UserID, d.PublicKey, d.PayloadKey, d.RegisteredAt, d.Revoked)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

// GetByUser returns the user's device or common.ErrorNotFound.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*models.Device, error) {
	query := `
		SELECT user_id, public_key, payload_key, registered_at, revoked
		FROM devices
		WHERE user_id = $1
	`
	d := &models.Device{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&d.UserID, &d.PublicKey, &d.PayloadKey, &d.RegisteredAt, &d.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// Revoke marks the user's device as revoked. Revocation is permanent;
// re-registering requires operator intervention.
func (r *PostgresRepository) Revoke(ctx context.Context, userID string) error {
	query := `UPDATE devices SET revoked = TRUE WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
