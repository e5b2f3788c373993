// Package records provides the PostgreSQL-backed store for offline
// transaction records and the global accepted-nonce index.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts a record if it is new. Resubmitting the same record ID is a
// no-op: the immutable core fields never change after creation.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.OfflineTransactionRecord) error {
	query := `
		INSERT INTO offline_transactions
			(id, sender_id, recipient_id, amount, ts, nonce, previous_hash,
			 transaction_hash, signature, encrypted_payload, payload_nonce, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SenderID, rec.RecipientID, rec.Amount, rec.Timestamp, rec.Nonce,
		rec.PreviousHash, rec.TransactionHash, rec.Signature,
		rec.EncryptedPayload, rec.PayloadNonce, rec.SyncStatus)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns a single record or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.OfflineTransactionRecord, error) {
	query := `
		SELECT id, sender_id, recipient_id, amount, ts, nonce, previous_hash,
		       transaction_hash, signature, encrypted_payload, payload_nonce,
		       sync_status, sync_attempts, last_sync_error, synced_at, ledger_ref
		FROM offline_transactions
		WHERE id = $1
	`
	rec := &models.OfflineTransactionRecord{}
	var syncedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.SenderID, &rec.RecipientID, &rec.Amount, &rec.Timestamp,
		&rec.Nonce, &rec.PreviousHash, &rec.TransactionHash, &rec.Signature,
		&rec.EncryptedPayload, &rec.PayloadNonce,
		&rec.SyncStatus, &rec.SyncAttempts, &rec.LastSyncError, &syncedAt, &rec.LedgerRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if syncedAt.Valid {
		rec.SyncedAt = &syncedAt.Time
	}
	return rec, nil
}

// SelectPending returns the user's records still awaiting sync, in chain
// order (timestamp, then id for equal timestamps).
func (r *PostgresRepository) SelectPending(ctx context.Context, userID string) ([]*models.OfflineTransactionRecord, error) {
	query := `
		SELECT id, sender_id, recipient_id, amount, ts, nonce, previous_hash,
		       transaction_hash, signature, encrypted_payload, payload_nonce,
		       sync_status, sync_attempts, last_sync_error, synced_at, ledger_ref
		FROM offline_transactions
		WHERE sender_id = $1 AND sync_status = 'PENDING'
		ORDER BY ts, id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.OfflineTransactionRecord
	for rows.Next() {
		rec := &models.OfflineTransactionRecord{}
		var syncedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID, &rec.SenderID, &rec.RecipientID, &rec.Amount, &rec.Timestamp,
			&rec.Nonce, &rec.PreviousHash, &rec.TransactionHash, &rec.Signature,
			&rec.EncryptedPayload, &rec.PayloadNonce,
			&rec.SyncStatus, &rec.SyncAttempts, &rec.LastSyncError, &syncedAt, &rec.LedgerRef,
		); err != nil {
			return nil, err
		}
		if syncedAt.Valid {
			rec.SyncedAt = &syncedAt.Time
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSynced transitions a record to SYNCED and stamps the ledger reference.
func (r *PostgresRepository) MarkSynced(ctx context.Context, id string, ledgerRef string, syncedAt time.Time) error {
	query := `
		UPDATE offline_transactions
		SET sync_status = 'SYNCED', synced_at = $2, ledger_ref = $3, last_sync_error = ''
		WHERE id = $1
	`
	return r.exec(ctx, query, id, syncedAt, ledgerRef)
}

// MarkFailed transitions a record to FAILED, recording the reason and
// incrementing the attempt counter.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE offline_transactions
		SET sync_status = 'FAILED', sync_attempts = sync_attempts + 1, last_sync_error = $2
		WHERE id = $1
	`
	return r.exec(ctx, query, id, reason)
}

// MarkConflict transitions a record to CONFLICT.
func (r *PostgresRepository) MarkConflict(ctx context.Context, id string) error {
	query := `
		UPDATE offline_transactions
		SET sync_status = 'CONFLICT', sync_attempts = sync_attempts + 1
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

// ExistsByHash reports whether any record with the given transaction hash was
// ever stored, regardless of its sync status.
func (r *PostgresRepository) ExistsByHash(ctx context.Context, txHash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM offline_transactions WHERE transaction_hash = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// ExistsByNonce consults the global accepted-nonce index.
func (r *PostgresRepository) ExistsByNonce(ctx context.Context, nonce string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accepted_nonces WHERE nonce = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, nonce).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// ReserveNonce records an accepted nonce. Must run in the same transaction
// that marks the record SYNCED so the replay index never lags the ledger.
// Returns common.ErrorAlreadyExists if the nonce was accepted before.
func (r *PostgresRepository) ReserveNonce(ctx context.Context, nonce string, txHash string) error {
	query := `
		INSERT INTO accepted_nonces (nonce, transaction_hash)
		VALUES ($1, $2)
		ON CONFLICT (nonce) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query, nonce, txHash)
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
