// Package chainmeta provides the PostgreSQL-backed store for per-user chain
// metadata with optimistic-concurrency updates.
package chainmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/models"
)

// PostgresRepository implements chain metadata storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the user's chain metadata or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.ChainMetadata, error) {
	query := `
		SELECT user_id, genesis_hash, current_head_hash, last_synced_hash,
		       pending_count, synced_count, failed_count, conflict_count,
		       chain_valid, last_validated_at, validation_error, version
		FROM chain_metadata
		WHERE user_id = $1
	`
	meta := &models.ChainMetadata{}
	var lastValidated sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&meta.UserID, &meta.GenesisHash, &meta.CurrentHeadHash, &meta.LastSyncedHash,
		&meta.PendingCount, &meta.SyncedCount, &meta.FailedCount, &meta.ConflictCount,
		&meta.ChainValid, &lastValidated, &meta.ValidationError, &meta.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lastValidated.Valid {
		meta.LastValidatedAt = &lastValidated.Time
	}
	return meta, nil
}

// Create inserts metadata for a user that has never synced. The row starts at
// version 1.
func (r *PostgresRepository) Create(ctx context.Context, meta *models.ChainMetadata) error {
	query := `
		INSERT INTO chain_metadata
			(user_id, genesis_hash, current_head_hash, last_synced_hash, chain_valid, version)
		VALUES ($1, $2, $3, $4, $5, 1)
	`
	_, err := r.db.ExecContext(ctx, query,
		meta.UserID, meta.GenesisHash, meta.CurrentHeadHash, meta.LastSyncedHash, meta.ChainValid)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	meta.Version = 1
	return nil
}

// Update writes metadata guarded by the version the caller read. A stale
// version updates no rows and returns common.ErrVersionConflict; on success
// the in-memory Version is bumped to match the row.
func (r *PostgresRepository) Update(ctx context.Context, meta *models.ChainMetadata) error {
	query := `
		UPDATE chain_metadata
		SET current_head_hash = $2, last_synced_hash = $3,
		    pending_count = $4, synced_count = $5, failed_count = $6, conflict_count = $7,
		    chain_valid = $8, last_validated_at = $9, validation_error = $10,
		    version = version + 1
		WHERE user_id = $1 AND version = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		meta.UserID, meta.CurrentHeadHash, meta.LastSyncedHash,
		meta.PendingCount, meta.SyncedCount, meta.FailedCount, meta.ConflictCount,
		meta.ChainValid, meta.LastValidatedAt, meta.ValidationError, meta.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		meta.Version++
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
