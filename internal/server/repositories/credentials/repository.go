package credentials

import (
	"context"

	"github.com/dmitrijs2005/cofrapauth/internal/server/models"
)

// Repository is the credential store consumed by the services. Every
// mutation is a single-row statement.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*models.Credential, error)
	// UpsertPassword creates the record when absent and always resets expired.
	// The MFA secret is left untouched.
	UpsertPassword(ctx context.Context, username, hash string, generatedAt int64) error
	SetExpired(ctx context.Context, username string) error
	SetMFASecret(ctx context.Context, username, ciphertext string) error
}
