package records

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/client/models"
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

const selectColumns = `id, sender_id, recipient_id, amount, ts, nonce,
	previous_hash, transaction_hash, signature, encrypted_payload,
	payload_nonce, sync_status, last_sync_error`

// Insert stores a freshly created record. Records are immutable facts; only
// sync_status and last_sync_error change afterwards.
func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.Record) error {
	query := `INSERT INTO records (id, sender_id, recipient_id, amount, ts, nonce,
			previous_hash, transaction_hash, signature, encrypted_payload,
			payload_nonce, sync_status, last_sync_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SenderID, rec.RecipientID, rec.Amount.String(),
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Nonce,
		rec.PreviousHash, rec.TransactionHash, rec.Signature,
		rec.EncryptedPayload, rec.PayloadNonce, rec.SyncStatus, rec.LastSyncError)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) selectWhere(ctx context.Context, where string, args ...any) ([]*models.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM records ` + where + ` ORDER BY ts, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec := &models.Record{}
		var amount, ts string
		if err := rows.Scan(&rec.ID, &rec.SenderID, &rec.RecipientID, &amount, &ts,
			&rec.Nonce, &rec.PreviousHash, &rec.TransactionHash, &rec.Signature,
			&rec.EncryptedPayload, &rec.PayloadNonce, &rec.SyncStatus, &rec.LastSyncError); err != nil {
			return nil, err
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad stored amount %q: %w", amount, err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("bad stored timestamp %q: %w", ts, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAll lists every record, oldest first.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Record, error) {
	return r.selectWhere(ctx, "")
}

// GetAllPending lists the records awaiting sync, oldest first.
func (r *SQLiteRepository) GetAllPending(ctx context.Context) ([]*models.Record, error) {
	return r.selectWhere(ctx, "WHERE sync_status = ?", models.StatusPending)
}

// SetStatus applies the server-reported disposition to one record.
func (r *SQLiteRepository) SetStatus(ctx context.Context, id, status, syncError string) error {
	query := `UPDATE records SET sync_status = ?, last_sync_error = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, status, syncError, id)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
