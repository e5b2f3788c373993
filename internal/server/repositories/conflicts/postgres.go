// Package conflicts provides the PostgreSQL-backed store for sync conflicts.
package conflicts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/models"
)

// PostgresRepository implements conflict storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `
	SELECT id, transaction_id, user_id, conflict_type, resolution_status, priority,
	       suggested_resolution, expected_balance, actual_balance,
	       expected_previous_hash, actual_previous_hash, detected_at, resolved_at
	FROM sync_conflicts
`

// Create persists a newly detected conflict.
func (r *PostgresRepository) Create(ctx context.Context, c *models.SyncConflict) error {
	query := `
		INSERT INTO sync_conflicts
			(id, transaction_id, user_id, conflict_type, resolution_status, priority,
			 suggested_resolution, expected_balance, actual_balance,
			 expected_previous_hash, actual_previous_hash, detected_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.TransactionID, c.UserID, c.Type, c.Resolution, c.Priority,
		c.SuggestedResolution, nullDecimal(c.ExpectedBalance), nullDecimal(c.ActualBalance),
		c.ExpectedPreviousHash, c.ActualPreviousHash, c.DetectedAt, c.ResolvedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update writes the resolution fields of an existing conflict.
func (r *PostgresRepository) Update(ctx context.Context, c *models.SyncConflict) error {
	query := `
		UPDATE sync_conflicts
		SET resolution_status = $2, suggested_resolution = $3, resolved_at = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, c.ID, c.Resolution, c.SuggestedResolution, c.ResolvedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// GetByID returns a single conflict or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SyncConflict, error) {
	query := selectColumns + ` WHERE id = $1`

	c, err := scanConflict(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// SelectByUser lists a user's conflicts, highest priority first. With onlyOpen
// the result is limited to UNRESOLVED and PENDING_USER conflicts.
func (r *PostgresRepository) SelectByUser(ctx context.Context, userID string, onlyOpen bool) ([]*models.SyncConflict, error) {
	query := selectColumns + ` WHERE user_id = $1`
	if onlyOpen {
		query += ` AND resolution_status IN ('UNRESOLVED', 'PENDING_USER')`
	}
	query += ` ORDER BY priority DESC, detected_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConflict(row rowScanner) (*models.SyncConflict, error) {
	c := &models.SyncConflict{}
	var expected, actual decimal.NullDecimal
	var resolvedAt sql.NullTime
	if err := row.Scan(
		&c.ID, &c.TransactionID, &c.UserID, &c.Type, &c.Resolution, &c.Priority,
		&c.SuggestedResolution, &expected, &actual,
		&c.ExpectedPreviousHash, &c.ActualPreviousHash, &c.DetectedAt, &resolvedAt,
	); err != nil {
		return nil, err
	}
	if expected.Valid {
		c.ExpectedBalance = &expected.Decimal
	}
	if actual.Valid {
		c.ActualBalance = &actual.Decimal
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	return c, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
