package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/server/auth"
	sc "github.com/offpay/chainsync/internal/server/config"
	"github.com/offpay/chainsync/internal/server/models"
	"github.com/offpay/chainsync/internal/server/repositories/repomanager"
)

// OperatorService handles back-office account registration and login.
type OperatorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewOperatorService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config) *OperatorService {
	return &OperatorService{db: db, repomanager: m, config: config}
}

// Register creates an operator account with an Argon2id password hash.
func (s *OperatorService) Register(ctx context.Context, login, password string) (*models.Operator, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	op := &models.Operator{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: hash,
	}

	op, err = s.repomanager.Operators(s.db).Create(ctx, op)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Login verifies credentials and issues an access token. Unknown logins and
// wrong passwords are indistinguishable to the caller.
func (s *OperatorService) Login(ctx context.Context, login, password string) (string, error) {
	op, err := s.repomanager.Operators(s.db).GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	ok, err := auth.VerifyPassword(password, op.PasswordHash)
	if err != nil {
		return "", common.ErrorInternal
	}
	if !ok {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(op.ID, []byte(s.config.SecretKey), s.config.AccessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}
