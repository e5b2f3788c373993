package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")

	// Chain/sync flow errors.
	ErrChainInvalidated = errors.New("chain invalidated, manual repair required")
	ErrSyncInProgress   = errors.New("sync already in progress for user")
	ErrDeviceRevoked    = errors.New("device revoked")
	ErrorAlreadyExists  = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
