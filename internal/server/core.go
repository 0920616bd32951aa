package server

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/cryptox"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/passwords"
	"github.com/dmitrijs2005/cofrapauth/internal/server/config"
	"github.com/dmitrijs2005/cofrapauth/internal/server/keys"
	"github.com/dmitrijs2005/cofrapauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cofrapauth/internal/server/shared/db"
	"github.com/dmitrijs2005/cofrapauth/internal/server/services"
	"github.com/dmitrijs2005/cofrapauth/internal/totpx"
)

// Core is the authentication core wired to its store. Both the HTTP server
// and the operator CLI build one.
type Core struct {
	DB            *db.Manager
	Provisioning  *services.ProvisioningService
	Enrollment    *services.EnrollmentService
	Authenticator *services.Authenticator
}

// NewCore resolves the master key and the DSN once. The database itself is
// not contacted until the first operation.
func NewCore(ctx context.Context, cfg *config.Config, log logging.Logger) (*Core, error) {
	key, err := keys.LoadMasterKey(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	codec, err := cryptox.NewCodec(key)
	common.WipeByteArray(key)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	log.Info(ctx, "master key loaded", "source", keys.Source(cfg))

	pm, err := passwords.NewManager(cfg.BcryptCost, cfg.PasswordValidityDays)
	if err != nil {
		return nil, fmt.Errorf("password manager: %w", err)
	}

	opts := totpx.Options{
		Issuer: cfg.Issuer,
		Period: cfg.OTPPeriod,
		Digits: cfg.OTPDigits,
		Skew:   cfg.OTPSkew,
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("totp options: %w", err)
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("database dsn: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	dbm := db.NewManager(dsn, db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, rm)

	return &Core{
		DB:            dbm,
		Provisioning:  services.NewProvisioningService(dbm, rm, pm, cfg.PasswordLength, log),
		Enrollment:    services.NewEnrollmentService(dbm, rm, codec, opts, log),
		Authenticator: services.NewAuthenticator(dbm, rm, pm, codec, opts, log),
	}, nil
}

func (c *Core) Close() error {
	return c.DB.Close()
}
