package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/server/repositories/repomanager"
)

// ProvisionResult carries the freshly generated password. It is the only
// place the plaintext ever exists; callers hand it to the user and drop it.
type ProvisionResult struct {
	Username    string
	Password    string
	GeneratedAt int64
}

type ProvisioningService struct {
	conn        Connector
	repomanager repomanager.RepositoryManager
	passwords   PasswordManager
	length      int
	log         logging.Logger
	now         func() time.Time
}

func NewProvisioningService(conn Connector, m repomanager.RepositoryManager, pm PasswordManager, length int, log logging.Logger) *ProvisioningService {
	return &ProvisioningService{
		conn:        conn,
		repomanager: m,
		passwords:   pm,
		length:      length,
		log:         log.With("module", "provisioning"),
		now:         time.Now,
	}
}

// Provision generates a new password for username, creating the record when
// it does not exist. Re-provisioning resets the expiry state and keeps the
// MFA secret.
func (s *ProvisioningService) Provision(ctx context.Context, username string) (*ProvisionResult, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}

	plain, err := s.passwords.Generate(s.length)
	if err != nil {
		return nil, errors.Join(common.ErrorInternal, err)
	}

	hash, err := s.passwords.Hash(plain)
	if err != nil {
		return nil, errors.Join(common.ErrorInternal, err)
	}

	db, err := s.conn.Conn(ctx)
	if err != nil {
		s.log.Error(ctx, "store unavailable", "error", err)
		return nil, storeError(err)
	}

	generatedAt := s.now().Unix()
	if err := s.repomanager.Credentials(db).UpsertPassword(ctx, username, hash, generatedAt); err != nil {
		s.log.Error(ctx, "password upsert failed", "username", username, "error", err)
		return nil, storeError(err)
	}

	s.log.Info(ctx, "password provisioned", "username", username)

	return &ProvisionResult{Username: username, Password: plain, GeneratedAt: generatedAt}, nil
}
