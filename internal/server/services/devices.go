package services

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"time"

	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/repositories/repomanager"
)

// DeviceService manages wallet device identities: one Ed25519 key per user,
// registered once and only ever revoked, never replaced in place.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager) *DeviceService {
	return &DeviceService{db: db, repomanager: m}
}

// Register stores the device's signing key and optional payload sealing key.
// Returns common.ErrorAlreadyExists when the user already has a device.
func (s *DeviceService) Register(ctx context.Context, userID string, publicKey, payloadKey []byte) (*models.Device, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}

	d := &models.Device{
		UserID:       userID,
		PublicKey:    publicKey,
		PayloadKey:   payloadKey,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.repomanager.Devices(s.db).Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Revoke marks the user's device key invalid. Records signed with a revoked
// key fail verification from that point on.
func (s *DeviceService) Revoke(ctx context.Context, userID string) error {
	return s.repomanager.Devices(s.db).Revoke(ctx, userID)
}
