// Package httpapi exposes the sync server over REST: batch submission and
// chain diagnostics for wallet devices, conflict review and chain repair for
// operators. Handlers bind JSON, delegate to the service layer and translate
// sentinel errors to HTTP status codes; no business logic lives here.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/offpay/chainsync/internal/logging"
	"github.com/offpay/chainsync/internal/server/chain"
	sc "github.com/offpay/chainsync/internal/server/config"
	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/services"
)

// SyncAPI is the slice of the sync service the transport needs.
type SyncAPI interface {
	SyncBatch(ctx context.Context, userID string, batch []*models.OfflineTransactionRecord) (*services.SyncReport, error)
	ValidateChainOnly(ctx context.Context, userID string) (*chain.ChainValidationResult, error)
	RepairChain(ctx context.Context, userID, anchorHash string) error
	ChainStatus(ctx context.Context, userID string) (*models.ChainMetadata, error)
}

// ConflictAPI serves the operator review endpoints.
type ConflictAPI interface {
	ListUserConflicts(ctx context.Context, userID string, includeResolved bool) ([]*models.SyncConflict, error)
	GetConflict(ctx context.Context, conflictID string) (*models.SyncConflict, error)
	ResolveManually(ctx context.Context, conflictID string, accept bool, operatorID string) (*models.SyncConflict, error)
}

// OperatorAPI serves operator onboarding and login.
type OperatorAPI interface {
	Register(ctx context.Context, login, password string) (*models.Operator, error)
	Login(ctx context.Context, login, password string) (string, error)
}

// DeviceAPI serves wallet device onboarding.
type DeviceAPI interface {
	Register(ctx context.Context, userID string, publicKey, payloadKey []byte) (*models.Device, error)
	Revoke(ctx context.Context, userID string) error
}

// AuditAPI serves audit report export and retrieval.
type AuditAPI interface {
	BuildReport(ctx context.Context, userID string) (*services.ConflictReport, error)
	GetPresignedPutUrl(ctx context.Context, userID string) (string, string, error)
	GetPresignedGetUrl(ctx context.Context, key string) (string, error)
}

type Server struct {
	config    *sc.Config
	logger    logging.Logger
	sync      SyncAPI
	conflicts ConflictAPI
	operators OperatorAPI
	devices   DeviceAPI
	audit     AuditAPI
}

func NewServer(cfg *sc.Config, logger logging.Logger, sync SyncAPI, conflicts ConflictAPI, operators OperatorAPI, devices DeviceAPI, audit AuditAPI) *Server {
	return &Server{
		config:    cfg,
		logger:    logger.With("component", "http"),
		sync:      sync,
		conflicts: conflicts,
		operators: operators,
		devices:   devices,
		audit:     audit,
	}
}

// Run serves the REST API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.EndpointAddrHTTP,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "http shutdown", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "http server listening", "addr", s.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
