// Package operators provides the PostgreSQL-backed store for back-office
// operator accounts.
package operators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/models"
)

// PostgresRepository implements operator storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new operator account.
func (r *PostgresRepository) Create(ctx context.Context, op *models.Operator) (*models.Operator, error) {
	query := `
		INSERT INTO operators (id, login, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, op.ID, op.Login, op.PasswordHash).Scan(&op.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return op, nil
}

// GetByLogin returns the operator with the given login or common.ErrorNotFound.
func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*models.Operator, error) {
	query := `
		SELECT id, login, password_hash, created_at FROM operators
		WHERE login = $1
	`
	op := &models.Operator{}
	err := r.db.QueryRowContext(ctx, query, login).Scan(&op.ID, &op.Login, &op.PasswordHash, &op.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return op, nil
}
