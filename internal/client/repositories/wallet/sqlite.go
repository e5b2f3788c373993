package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/offpay/chainsync/internal/client/models"
	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.WalletState, error) {
	query := `SELECT user_id, private_key, payload_key, head_hash FROM wallet_state WHERE id = 1`
	row := r.db.QueryRowContext(ctx, query)

	s := &models.WalletState{}
	if err := row.Scan(&s.UserID, &s.PrivateKey, &s.PayloadKey, &s.HeadHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to load wallet state: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, state *models.WalletState) error {
	query := `INSERT INTO wallet_state (id, user_id, private_key, payload_key, head_hash)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id,
			private_key = excluded.private_key,
			payload_key = excluded.payload_key,
			head_hash = excluded.head_hash`

	_, err := r.db.ExecContext(ctx, query,
		state.UserID, state.PrivateKey, state.PayloadKey, state.HeadHash)
	if err != nil {
		return fmt.Errorf("failed to save wallet state: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateHead(ctx context.Context, headHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE wallet_state SET head_hash = ? WHERE id = 1`, headHash)
	if err != nil {
		return fmt.Errorf("failed to update head: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}
