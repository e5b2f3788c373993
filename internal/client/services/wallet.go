// Package services implements the wallet agent's workflows: device
// provisioning, offline payment creation and batch synchronization with the
// server.
package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/client/api"
	"github.com/offpay/chainsync/internal/client/models"
	"github.com/offpay/chainsync/internal/client/repositories/records"
	"github.com/offpay/chainsync/internal/client/repositories/wallet"
	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/cryptox"
	"github.com/offpay/chainsync/internal/logging"
)

// ServerClient is the slice of the REST client the wallet service needs.
type ServerClient interface {
	RegisterDevice(ctx context.Context, userID string, publicKey, payloadKey []byte) error
	SubmitBatch(ctx context.Context, userID string, recs []*models.Record) (*api.SyncReport, error)
}

// WalletService creates hash-linked payment records offline and reconciles
// them with the server when connectivity allows.
type WalletService struct {
	userID  string
	server  ServerClient
	records records.Repository
	wallet  wallet.Repository
	logger  logging.Logger
}

func NewWalletService(userID string, server ServerClient, recs records.Repository, w wallet.Repository, logger logging.Logger) *WalletService {
	return &WalletService{
		userID:  userID,
		server:  server,
		records: recs,
		wallet:  w,
		logger:  logger.With("component", "wallet"),
	}
}

// Init provisions the wallet on first run: generates the Ed25519 signing key
// and the payload sealing key, anchors the local chain at the genesis hash
// and registers the device with the server. Calling Init on a provisioned
// wallet is a no-op returning the existing state.
func (s *WalletService) Init(ctx context.Context) (*models.WalletState, error) {
	state, err := s.wallet.Load(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	pub, priv, err := cryptox.GenerateDeviceKey()
	if err != nil {
		return nil, fmt.Errorf("generating device key: %w", err)
	}

	payloadKey := make([]byte, 32)
	if _, err := rand.Read(payloadKey); err != nil {
		return nil, fmt.Errorf("generating payload key: %w", err)
	}

	state = &models.WalletState{
		UserID:     s.userID,
		PrivateKey: priv,
		PayloadKey: payloadKey,
		HeadHash:   common.GenesisHash,
	}
	if err := s.wallet.Save(ctx, state); err != nil {
		return nil, err
	}

	if err := s.server.RegisterDevice(ctx, s.userID, pub, payloadKey); err != nil &&
		!errors.Is(err, common.ErrorAlreadyExists) {
		return nil, fmt.Errorf("registering device: %w", err)
	}

	s.logger.Info(ctx, "wallet provisioned", "user_id", s.userID)
	return state, nil
}

// Pay creates one offline payment record: links it to the local head, hashes,
// signs, seals the memo and advances the head. Works fully offline.
func (s *WalletService) Pay(ctx context.Context, recipient string, amount decimal.Decimal, memo string) (*models.Record, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	state, err := s.wallet.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet not provisioned: %w", err)
	}

	nonce, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, err
	}

	rec := &models.Record{
		ID:           uuid.NewString(),
		SenderID:     state.UserID,
		RecipientID:  recipient,
		Amount:       amount,
		Timestamp:    time.Now().UTC(),
		Nonce:        nonce,
		PreviousHash: state.HeadHash,
		SyncStatus:   models.StatusPending,
	}
	rec.TransactionHash = rec.ComputeHash()
	rec.Signature = cryptox.SignHash(ed25519.PrivateKey(state.PrivateKey), rec.TransactionHash)

	if memo != "" {
		rec.EncryptedPayload, rec.PayloadNonce, err = cryptox.SealPayload(models.Payload{Memo: memo}, state.PayloadKey)
		if err != nil {
			return nil, fmt.Errorf("sealing payload: %w", err)
		}
	}

	if err := s.records.Insert(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.wallet.UpdateHead(ctx, rec.TransactionHash); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "payment recorded",
		"id", rec.ID, "recipient", recipient, "amount", amount.String())
	return rec, nil
}

// List returns every local record, oldest first.
func (s *WalletService) List(ctx context.Context) ([]*models.Record, error) {
	return s.records.GetAll(ctx)
}

// Sync submits the pending batch and applies the server's per-record
// disposition locally. Records the server neither settled nor conflicted
// (a broken chain halts settlement) stay PENDING for the next attempt.
func (s *WalletService) Sync(ctx context.Context) (*api.SyncReport, error) {
	pending, err := s.records.GetAllPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &api.SyncReport{UserID: s.userID, ChainValid: true}, nil
	}

	report, err := s.server.SubmitBatch(ctx, s.userID, pending)
	if err != nil {
		return nil, err
	}

	conflicted := make(map[string]api.ConflictInfo, len(report.Conflicts))
	for _, ci := range report.Conflicts {
		// auto-resolved findings are annotations; the record still settled
		if ci.Resolution == "AUTO_RESOLVED" {
			continue
		}
		conflicted[ci.TransactionID] = ci
	}

	for _, rec := range pending {
		if ci, ok := conflicted[rec.ID]; ok {
			status := models.StatusConflict
			if ci.Resolution == "REJECTED" {
				status = models.StatusFailed
			}
			if err := s.records.SetStatus(ctx, rec.ID, status, ci.SuggestedResolution); err != nil {
				return nil, err
			}
			continue
		}
		if report.ChainValid {
			if err := s.records.SetStatus(ctx, rec.ID, models.StatusSynced, ""); err != nil {
				return nil, err
			}
		}
	}

	if !report.ChainValid {
		s.logger.Warn(ctx, "server reports broken chain, unsettled records stay pending",
			"user_id", s.userID)
	}
	s.logger.Info(ctx, "sync finished",
		"submitted", len(pending), "synced", report.Synced, "conflicted", report.Conflicted)

	return report, nil
}
