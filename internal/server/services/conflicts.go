package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/logging"
	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/repositories/repomanager"
)

// ConflictService serves the operator review workflow: listing open
// conflicts and applying manual decisions to escalated ones.
type ConflictService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	ledger      *LedgerService
}

func NewConflictService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *ConflictService {
	return &ConflictService{
		db:          db,
		repomanager: m,
		logger:      logger.With("component", "conflicts"),
		ledger:      NewLedgerService(m),
	}
}

// ListUserConflicts returns a user's conflicts ordered by priority, open
// ones only unless includeResolved is set.
func (s *ConflictService) ListUserConflicts(ctx context.Context, userID string, includeResolved bool) ([]*models.SyncConflict, error) {
	return s.repomanager.Conflicts(s.db).SelectByUser(ctx, userID, !includeResolved)
}

// GetConflict returns a single conflict by ID.
func (s *ConflictService) GetConflict(ctx context.Context, conflictID string) (*models.SyncConflict, error) {
	return s.repomanager.Conflicts(s.db).GetByID(ctx, conflictID)
}

// ResolveManually applies an operator decision to an escalated conflict.
// Accepting commits the held transaction to the ledger; rejecting marks the
// record permanently failed. Either way the conflict leaves the open set.
// Only PENDING_USER and UNRESOLVED conflicts can be decided.
func (s *ConflictService) ResolveManually(ctx context.Context, conflictID string, accept bool, operatorID string) (*models.SyncConflict, error) {

	var resolved *models.SyncConflict

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		confRepo := s.repomanager.Conflicts(tx)
		recRepo := s.repomanager.Records(tx)

		c, err := confRepo.GetByID(ctx, conflictID)
		if err != nil {
			return err
		}

		switch c.Resolution {
		case models.ResolutionUnresolved, models.ResolutionPendingUser:
		default:
			return fmt.Errorf("conflict %s already decided (%s): %w", c.ID, c.Resolution, common.ErrorAlreadyExists)
		}

		now := time.Now().UTC()

		if accept {
			rec, err := recRepo.GetByID(ctx, c.TransactionID)
			if err != nil {
				return err
			}

			ref, err := s.ledger.Commit(ctx, tx, rec, now)
			if err != nil {
				return err
			}
			if err := recRepo.ReserveNonce(ctx, rec.Nonce, rec.TransactionHash); err != nil &&
				!errors.Is(err, common.ErrorAlreadyExists) {
				return err
			}
			if err := recRepo.MarkSynced(ctx, rec.ID, ref, now); err != nil {
				return err
			}

			c.Resolution = models.ResolutionManualResolved
			c.SuggestedResolution = fmt.Sprintf("accepted by operator %s", operatorID)
		} else {
			if err := recRepo.MarkFailed(ctx, c.TransactionID, "rejected by operator"); err != nil {
				return err
			}

			c.Resolution = models.ResolutionRejected
			c.SuggestedResolution = fmt.Sprintf("rejected by operator %s", operatorID)
		}
		c.ResolvedAt = &now

		if err := confRepo.Update(ctx, c); err != nil {
			return err
		}

		resolved = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "conflict decided manually",
		"conflict_id", resolved.ID, "operator_id", operatorID,
		"accepted", accept, "type", string(resolved.Type))

	return resolved, nil
}
