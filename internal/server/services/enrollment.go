package services

import (
	"context"
	"errors"

	"github.com/pquerna/otp"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/dbx"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cofrapauth/internal/totpx"
)

type EnrollResult struct {
	Username        string
	ProvisioningURI string
}

type EnrollmentService struct {
	conn        Connector
	repomanager repomanager.RepositoryManager
	codec       SecretCodec
	opts        totpx.Options
	log         logging.Logger
	generateKey func(opts totpx.Options, account string) (*otp.Key, error)
}

func NewEnrollmentService(conn Connector, m repomanager.RepositoryManager, codec SecretCodec, opts totpx.Options, log logging.Logger) *EnrollmentService {
	return &EnrollmentService{
		conn:        conn,
		repomanager: m,
		codec:       codec,
		opts:        opts,
		log:         log.With("module", "enrollment"),
		generateKey: totpx.GenerateKey,
	}
}

// Enroll replaces the user's TOTP seed with a fresh one and returns the
// otpauth:// URI for it. The previous seed stops validating as soon as the
// transaction commits. Unknown users get common.ErrorNotFound and nothing is
// written.
func (s *EnrollmentService) Enroll(ctx context.Context, username string) (*EnrollResult, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}

	db, err := s.conn.Conn(ctx)
	if err != nil {
		s.log.Error(ctx, "store unavailable", "error", err)
		return nil, storeError(err)
	}

	var uri string
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		if _, err := repo.GetByUsername(ctx, username); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return err
			}
			return storeError(err)
		}

		key, err := s.generateKey(s.opts, username)
		if err != nil {
			return errors.Join(common.ErrorInternal, err)
		}

		ciphertext, err := s.codec.Encrypt(key.Secret())
		if err != nil {
			return errors.Join(common.ErrorInternal, err)
		}

		if err := repo.SetMFASecret(ctx, username, ciphertext); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return err
			}
			return storeError(err)
		}

		uri = key.URL()
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, common.ErrorNotFound):
		s.log.Info(ctx, "enrollment for unknown user", "username", username)
		return nil, common.ErrorNotFound
	case errors.Is(err, common.ErrorInternal):
		s.log.Error(ctx, "enrollment failed", "username", username, "error", err)
		return nil, err
	default:
		// begin / commit failures land here too
		s.log.Error(ctx, "enrollment write failed", "username", username, "error", err)
		return nil, storeError(err)
	}

	s.log.Info(ctx, "mfa enrolled", "username", username)

	return &EnrollResult{Username: username, ProvisioningURI: uri}, nil
}
