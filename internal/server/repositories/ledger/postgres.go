// Package ledger provides the PostgreSQL-backed store for account balances
// and committed ledger entries. The unique tx_hash constraint on entries
// makes commits idempotent.
package ledger

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

// PostgresRepository implements ledger storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetAccount returns the user's balance row. A user with no account yet
// reads as a zero balance, not an error.
func (r *PostgresRepository) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	query := `SELECT user_id, balance FROM accounts WHERE user_id = $1`

	acc := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&acc.UserID, &acc.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Account{UserID: userID, Balance: decimal.Zero}, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

// AdjustBalance applies a signed delta to the user's balance, creating the
// account row on first touch.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	query := `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance;
	`
	_, err := r.db.ExecContext(ctx, query, userID, delta)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// InsertEntry writes a ledger entry keyed by tx_hash. Returns false without
// error when an entry for the same hash already exists: the commit already
// happened and must not be applied again.
func (r *PostgresRepository) InsertEntry(ctx context.Context, e *models.LedgerEntry) (bool, error) {
	query := `
		INSERT INTO ledger_entries (id, tx_hash, sender_id, recipient_id, amount, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.TxHash, e.SenderID, e.RecipientID, e.Amount, e.PostedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// GetEntryByTxHash returns the committed entry for a transaction hash or
// common.ErrorNotFound.
func (r *PostgresRepository) GetEntryByTxHash(ctx context.Context, txHash string) (*models.LedgerEntry, error) {
	query := `
		SELECT id, tx_hash, sender_id, recipient_id, amount, posted_at
		FROM ledger_entries
		WHERE tx_hash = $1
	`
	e := &models.LedgerEntry{}
	err := r.db.QueryRowContext(ctx, query, txHash).Scan(
		&e.ID, &e.TxHash, &e.SenderID, &e.RecipientID, &e.Amount, &e.PostedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}
