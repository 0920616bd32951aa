// Package services contains the authentication core: password provisioning,
// MFA enrollment and the login decision.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
)

// Connector hands out the shared connection pool, opening it on first use.
type Connector interface {
	Conn(ctx context.Context) (*sql.DB, error)
}

// PasswordManager is implemented by *passwords.Manager.
type PasswordManager interface {
	Generate(length int) (string, error)
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	IsExpired(generatedAt, now int64) bool
}

// SecretCodec is implemented by *cryptox.Codec.
type SecretCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

func storeError(err error) error {
	if errors.Is(err, common.ErrorStore) {
		return err
	}
	return errors.Join(common.ErrorStore, err)
}

// normalizeUsername strips surrounding whitespace so " alice " and "alice"
// name the same record.
func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", common.ErrorInvalidInput)
	}
	return username, nil
}
