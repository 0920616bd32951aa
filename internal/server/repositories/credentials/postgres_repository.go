// Package credentials stores credential records in PostgreSQL.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/dbx"
	"github.com/dmitrijs2005/cofrapauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Credential, error) {
	query :=
		`SELECT id, username, password_hash, mfa_secret, generated_at, expired, updated_at
		 FROM credentials
		 WHERE username = $1
		 `

	c := &models.Credential{}
	var secret sql.NullString

	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&c.ID, &c.Username, &c.PasswordHash, &secret, &c.GeneratedAt, &c.Expired, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if secret.Valid {
		c.MFASecretEncrypted = &secret.String
	}

	return c, nil
}

func (r *PostgresRepository) UpsertPassword(ctx context.Context, username, hash string, generatedAt int64) error {
	query :=
		`INSERT INTO credentials (username, password_hash, generated_at, expired)
		 VALUES ($1, $2, $3, FALSE)
		 ON CONFLICT (username) DO UPDATE
		 SET password_hash = EXCLUDED.password_hash,
		     generated_at = EXCLUDED.generated_at,
		     expired = FALSE,
		     updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, username, hash, generatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SetExpired(ctx context.Context, username string) error {
	query :=
		`UPDATE credentials SET expired = TRUE, updated_at = now()
		 WHERE username = $1
		 `

	return r.execOne(ctx, query, username)
}

func (r *PostgresRepository) SetMFASecret(ctx context.Context, username, ciphertext string) error {
	query :=
		`UPDATE credentials SET mfa_secret = $2, updated_at = now()
		 WHERE username = $1
		 `

	return r.execOne(ctx, query, username, ciphertext)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
