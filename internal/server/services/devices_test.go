package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/cryptox"
)

func TestDeviceRegisterAndRevoke(t *testing.T) {
	rm := newFakeRM()
	svc := NewDeviceService(newSvcDB(t), rm)
	ctx := context.Background()

	pub, _, err := cryptox.GenerateDeviceKey()
	require.NoError(t, err)

	d, err := svc.Register(ctx, "u1", pub, nil)
	require.NoError(t, err)
	assert.False(t, d.Revoked)
	assert.False(t, d.RegisteredAt.IsZero())

	// one device per user
	_, err = svc.Register(ctx, "u1", pub, nil)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	require.NoError(t, svc.Revoke(ctx, "u1"))
	stored, err := rm.dev.GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.Revoked)
}

func TestDeviceRegister_BadKeyLength(t *testing.T) {
	svc := NewDeviceService(newSvcDB(t), newFakeRM())

	_, err := svc.Register(context.Background(), "u1", []byte("short"), nil)
	assert.Error(t, err)
}
