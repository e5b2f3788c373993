package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/repositories/repomanager"
)

// LedgerService posts validated offline transactions to the authoritative
// ledger. Commits are idempotent by transaction hash: replaying a commit
// returns the original ledger reference without moving money twice.
type LedgerService struct {
	repomanager repomanager.RepositoryManager
}

func NewLedgerService(m repomanager.RepositoryManager) *LedgerService {
	return &LedgerService{repomanager: m}
}

// LastKnownBalance returns the server-side balance for a user. Users with no
// account yet read as zero.
func (s *LedgerService) LastKnownBalance(ctx context.Context, db dbx.DBTX, userID string) (decimal.Decimal, error) {
	acc, err := s.repomanager.Ledger(db).GetAccount(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading account: %w", err)
	}
	return acc.Balance, nil
}

// Commit posts one record within the caller's transaction and returns the
// ledger reference. If an entry for the same transaction hash already exists
// the balances are left untouched and the existing reference is returned.
func (s *LedgerService) Commit(ctx context.Context, db dbx.DBTX, rec *models.OfflineTransactionRecord, postedAt time.Time) (string, error) {
	repo := s.repomanager.Ledger(db)

	entry := &models.LedgerEntry{
		ID:          uuid.NewString(),
		TxHash:      rec.TransactionHash,
		SenderID:    rec.SenderID,
		RecipientID: rec.RecipientID,
		Amount:      rec.Amount,
		PostedAt:    postedAt,
	}

	inserted, err := repo.InsertEntry(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("inserting ledger entry: %w", err)
	}
	if !inserted {
		existing, err := repo.GetEntryByTxHash(ctx, rec.TransactionHash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return "", fmt.Errorf("ledger entry for %s vanished mid-transaction", rec.TransactionHash)
			}
			return "", fmt.Errorf("loading committed entry: %w", err)
		}
		return existing.ID, nil
	}

	if err := repo.AdjustBalance(ctx, rec.SenderID, rec.Amount.Neg()); err != nil {
		return "", fmt.Errorf("debiting sender: %w", err)
	}
	if err := repo.AdjustBalance(ctx, rec.RecipientID, rec.Amount); err != nil {
		return "", fmt.Errorf("crediting recipient: %w", err)
	}

	return entry.ID, nil
}
