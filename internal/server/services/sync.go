package services

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/dbx"
	"github.com/offpay/chainsync/internal/logging"
	"github.com/offpay/chainsync/internal/server/chain"
	sc "github.com/offpay/chainsync/internal/server/config"
	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/repositories/repomanager"
)

// SyncReport summarizes one batch submission: how records were dispositioned,
// the balance after applying the accepted debits/credits, and every conflict
// filed along the way.
type SyncReport struct {
	UserID           string                 `json:"user_id"`
	Synced           int                    `json:"synced"`
	Conflicted       int                    `json:"conflicted"`
	ProjectedBalance decimal.Decimal        `json:"projected_balance"`
	ChainValid       bool                   `json:"chain_valid"`
	ChainErrors      []chain.ChainError     `json:"chain_errors,omitempty"`
	Conflicts        []*models.SyncConflict `json:"conflicts,omitempty"`
}

// userLocks serializes sync attempts per user. A second submission while one
// is running is refused, not queued: the device retries with backoff anyway.
type userLocks struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{locked: make(map[string]struct{})}
}

func (l *userLocks) tryLock(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.locked[userID]; busy {
		return false
	}
	l.locked[userID] = struct{}{}
	return true
}

func (l *userLocks) unlock(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locked, userID)
}

// deviceKeyResolver adapts the devices repository to chain.KeyResolver.
type deviceKeyResolver struct {
	repomanager repomanager.RepositoryManager
	db          dbx.DBTX
}

func (r *deviceKeyResolver) DeviceKeys(ctx context.Context, userID string) (ed25519.PublicKey, []byte, error) {
	d, err := r.repomanager.Devices(r.db).GetByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if d.Revoked {
		return nil, nil, common.ErrDeviceRevoked
	}
	return ed25519.PublicKey(d.PublicKey), d.PayloadKey, nil
}

// SyncService orchestrates batch synchronization: chain integrity, payload
// validation, double-spend replay, conflict resolution and the transactional
// ledger commit.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	ledger      *LedgerService
	locks       *userLocks
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config, logger logging.Logger) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		config:      config,
		logger:      logger.With("component", "sync"),
		ledger:      NewLedgerService(m),
		locks:       newUserLocks(),
	}
}

func (s *SyncService) validationConfig() chain.ValidationConfig {
	return chain.ValidationConfig{
		MaxAge:             s.config.MaxRecordAge,
		FutureTolerance:    s.config.FutureTolerance,
		SecondaryTolerance: s.config.SecondaryTolerance,
		MaxFractionDigits:  2,
	}
}

// loadOrCreateMeta returns the user's chain metadata, creating a fresh row
// anchored at the genesis hash for first-time users.
func (s *SyncService) loadOrCreateMeta(ctx context.Context, db dbx.DBTX, userID string) (*models.ChainMetadata, error) {
	repo := s.repomanager.ChainMeta(db)

	meta, err := repo.Get(ctx, userID)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	meta = &models.ChainMetadata{
		UserID:          userID,
		GenesisHash:     common.GenesisHash,
		CurrentHeadHash: common.GenesisHash,
		ChainValid:      true,
	}
	if err := repo.Create(ctx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// SyncBatch runs the full pipeline for one user's ordered batch.
//
// The batch is persisted as PENDING first so nothing is lost, then validated
// in three passes (chain integrity, per-record payload, double-spend replay).
// Conflicts are filed and auto-resolved by policy, and the surviving records
// are committed to the ledger in a single transaction together with the
// status updates, nonce reservations and the optimistic metadata bump. The
// commit transaction retries on version conflicts up to MaxCommitRetries.
//
// Returns common.ErrSyncInProgress when a sync for the user is already
// running and common.ErrChainInvalidated when the circuit breaker is open.
func (s *SyncService) SyncBatch(ctx context.Context, userID string, batch []*models.OfflineTransactionRecord) (*SyncReport, error) {

	if !s.locks.tryLock(userID) {
		return nil, common.ErrSyncInProgress
	}
	defer s.locks.unlock(userID)

	// Devices may deliver records in any wire order; every pass below assumes
	// chain order (timestamp, then ID as the tie-breaker).
	sort.SliceStable(batch, func(i, j int) bool {
		if !batch[i].Timestamp.Equal(batch[j].Timestamp) {
			return batch[i].Timestamp.Before(batch[j].Timestamp)
		}
		return batch[i].ID < batch[j].ID
	})

	now := time.Now().UTC()

	meta, err := s.loadOrCreateMeta(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if !meta.ChainValid {
		return nil, common.ErrChainInvalidated
	}

	// Persist the batch before judging it. Records are immutable facts from
	// the device; only their disposition changes below.
	recRepo := s.repomanager.Records(s.db)
	for _, rec := range batch {
		if rec.SyncStatus == "" {
			rec.SyncStatus = models.SyncStatusPending
		}
		if err := recRepo.Upsert(ctx, rec); err != nil {
			return nil, err
		}
	}

	report := &SyncReport{UserID: userID, ChainValid: true}

	// Acknowledge records already committed to the ledger before judging the
	// batch: a batch replayed after a lost response must not be validated
	// against the anchor its own first submission advanced.
	ledgerRepo := s.repomanager.Ledger(s.db)
	committedRefs := make(map[string]string) // record ID -> existing ledger ref
	var fresh []*models.OfflineTransactionRecord

	for _, rec := range batch {
		entry, err := ledgerRepo.GetEntryByTxHash(ctx, rec.TransactionHash)
		if err == nil {
			committedRefs[rec.ID] = entry.ID
			continue
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		fresh = append(fresh, rec)
	}

	// Pass 1: chain integrity over the new records.
	integrity := chain.ValidateChain(userID, meta.LastSyncedHash, fresh)
	report.ChainErrors = integrity.Errors

	var found []*models.SyncConflict
	integrityBad := integrity.ImplicatedIndexes()
	conflictedIDs := make(map[string]struct{})
	chainBroken := false

	for _, ce := range integrity.Errors {
		if ce.Code == chain.CodeInvalidGenesis || ce.Code == chain.CodeChainBroken {
			chainBroken = true
		}
		found = append(found, chain.NewChainConflict(userID, fresh[ce.Index], ce, now))
		conflictedIDs[fresh[ce.Index].ID] = struct{}{}
	}

	// Pass 2: payload validation on records that survived pass 1.
	keys := &deviceKeyResolver{repomanager: s.repomanager, db: s.db}
	vcfg := s.validationConfig()

	var candidates []*models.OfflineTransactionRecord

	for i, rec := range fresh {
		if _, bad := integrityBad[i]; bad {
			continue
		}

		pres, err := chain.ValidatePayload(ctx, rec, keys, recRepo, now, vcfg)
		if err != nil {
			return nil, err
		}
		for _, issue := range pres.Errors {
			found = append(found, chain.NewPayloadConflict(userID, rec, issue, false, now))
			conflictedIDs[rec.ID] = struct{}{}
		}
		for _, w := range pres.Warnings {
			if w.Code == chain.CodeTimestampInvalid {
				found = append(found, chain.NewPayloadConflict(userID, rec, w, true, now))
			}
		}
		if pres.Valid {
			candidates = append(candidates, rec)
		}
	}

	// A broken chain halts settlement outright: nothing commits until an
	// operator re-anchors, and the untouched records stay PENDING.
	if chainBroken {
		candidates = nil
	}

	// Pass 3: double-spend replay over the remaining candidates.
	balance, err := s.ledger.LastKnownBalance(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	dsReport := chain.DetectDoubleSpending(userID, balance, candidates)
	report.ProjectedBalance = dsReport.ProjectedBalance

	flagged := make(map[string]struct{})
	for _, f := range dsReport.Flagged {
		found = append(found, chain.NewInsufficientFundsConflict(userID, f, now))
		conflictedIDs[f.TransactionID] = struct{}{}
		flagged[f.TransactionID] = struct{}{}
	}

	// Deterministic policy pass before anything is persisted.
	chain.ResolveConflicts(found, now)
	report.Conflicts = found

	// Structural head: the chain includes conflicted records, so the anchor
	// advances through every record whose linkage checked out, regardless of
	// its ledger disposition. A broken chain never advances the anchor.
	newHead := meta.CurrentHeadHash
	if !chainBroken {
		for i, rec := range fresh {
			if _, bad := integrityBad[i]; bad {
				continue
			}
			newHead = rec.TransactionHash
		}
	}

	commit := func(ctx context.Context) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			recs := s.repomanager.Records(tx)
			confs := s.repomanager.Conflicts(tx)
			metas := s.repomanager.ChainMeta(tx)

			meta, err := metas.Get(ctx, userID)
			if err != nil {
				return err
			}

			synced := 0

			for id, ref := range committedRefs {
				if err := recs.MarkSynced(ctx, id, ref, now); err != nil {
					return err
				}
				synced++
			}

			for _, rec := range candidates {
				if _, skip := flagged[rec.ID]; skip {
					continue
				}
				ref, err := s.ledger.Commit(ctx, tx, rec, now)
				if err != nil {
					return err
				}
				if err := recs.ReserveNonce(ctx, rec.Nonce, rec.TransactionHash); err != nil &&
					!errors.Is(err, common.ErrorAlreadyExists) {
					return err
				}
				if err := recs.MarkSynced(ctx, rec.ID, ref, now); err != nil {
					return err
				}
				synced++
			}

			for _, c := range found {
				if err := confs.Create(ctx, c); err != nil {
					return err
				}
			}
			for id := range conflictedIDs {
				if err := recs.MarkConflict(ctx, id); err != nil {
					return err
				}
			}

			meta.CurrentHeadHash = newHead
			meta.LastSyncedHash = newHead
			meta.SyncedCount += synced
			meta.ConflictCount += len(conflictedIDs)
			// records neither settled nor conflicted stay PENDING (a broken
			// chain withholds every unimplicated record)
			meta.PendingCount = len(batch) - synced - len(conflictedIDs)
			meta.LastValidatedAt = &now
			if chainBroken {
				meta.ChainValid = false
				meta.ValidationError = "chain integrity violated, manual repair required"
			}
			if err := metas.Update(ctx, meta); err != nil {
				return err
			}

			report.Synced = synced
			report.Conflicted = len(conflictedIDs)
			return nil
		})
	}

	backoff := retry.WithMaxRetries(uint64(s.config.MaxCommitRetries), retry.NewExponential(50*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := commit(ctx)
		if errors.Is(err, common.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}

	if chainBroken {
		report.ChainValid = false
		s.logger.Warn(ctx, "chain invalidated, circuit breaker open",
			"user_id", userID, "errors", len(integrity.Errors))
	}

	for _, c := range found {
		if c.SecurityRelevant() {
			s.logger.Warn(ctx, "security-relevant conflict detected",
				"user_id", userID, "conflict_id", c.ID, "type", string(c.Type))
		}
	}

	s.logger.Info(ctx, "batch processed",
		"user_id", userID, "batch", len(batch),
		"synced", report.Synced, "conflicted", report.Conflicted)

	return report, nil
}

// ValidateChainOnly runs chain integrity over the user's pending records
// without committing anything. Strictly read-only: a user who has never
// synced is answered against the genesis anchor, no metadata row is created.
func (s *SyncService) ValidateChainOnly(ctx context.Context, userID string) (*chain.ChainValidationResult, error) {
	anchor := ""
	meta, err := s.repomanager.ChainMeta(s.db).Get(ctx, userID)
	if err == nil {
		anchor = meta.LastSyncedHash
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	pending, err := s.repomanager.Records(s.db).SelectPending(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := chain.ValidateChain(userID, anchor, pending)
	return &result, nil
}

// RepairChain re-anchors an invalidated chain at the given hash and closes
// the circuit breaker. Operator-only: the handler layer enforces auth.
func (s *SyncService) RepairChain(ctx context.Context, userID, anchorHash string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.ChainMeta(tx)

		meta, err := repo.Get(ctx, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		meta.ChainValid = true
		meta.ValidationError = ""
		meta.LastSyncedHash = anchorHash
		meta.CurrentHeadHash = anchorHash
		meta.LastValidatedAt = &now

		if err := repo.Update(ctx, meta); err != nil {
			return err
		}

		s.logger.Info(ctx, "chain re-anchored", "user_id", userID, "anchor", anchorHash)
		return nil
	})
}

// ChainStatus returns the user's chain metadata for status endpoints.
func (s *SyncService) ChainStatus(ctx context.Context, userID string) (*models.ChainMetadata, error) {
	return s.repomanager.ChainMeta(s.db).Get(ctx, userID)
}
