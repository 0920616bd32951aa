package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cofrapauth/internal/totpx"
)

// AuthResult is the outcome of a login attempt. The zero value is a
// rejection.
type AuthResult int

const (
	UserNotFound AuthResult = iota
	PasswordExpired
	InvalidPassword
	MfaNotEnrolled
	InvalidOtp
	Authenticated
)

func (r AuthResult) String() string {
	switch r {
	case UserNotFound:
		return "UserNotFound"
	case PasswordExpired:
		return "PasswordExpired"
	case InvalidPassword:
		return "InvalidPassword"
	case MfaNotEnrolled:
		return "MfaNotEnrolled"
	case InvalidOtp:
		return "InvalidOtp"
	case Authenticated:
		return "Authenticated"
	default:
		return "Unknown"
	}
}

// Err maps the result onto the common error taxonomy; nil for Authenticated.
func (r AuthResult) Err() error {
	switch r {
	case Authenticated:
		return nil
	case UserNotFound:
		return common.ErrorNotFound
	case PasswordExpired:
		return common.ErrorPasswordExpired
	default:
		return common.ErrorInvalidCredential
	}
}

// AuthRequest is a login attempt with both factors already separated.
type AuthRequest struct {
	Username string
	Password string
	OTP      string
}

type Authenticator struct {
	conn        Connector
	repomanager repomanager.RepositoryManager
	passwords   PasswordManager
	codec       SecretCodec
	opts        totpx.Options
	log         logging.Logger
	now         func() time.Time
	validateOTP func(code, secret string, t time.Time, opts totpx.Options) bool
}

func NewAuthenticator(conn Connector, m repomanager.RepositoryManager, pm PasswordManager, codec SecretCodec, opts totpx.Options, log logging.Logger) *Authenticator {
	return &Authenticator{
		conn:        conn,
		repomanager: m,
		passwords:   pm,
		codec:       codec,
		opts:        opts,
		log:         log.With("module", "authenticator"),
		now:         time.Now,
		validateOTP: totpx.Validate,
	}
}

// Authenticate runs the ordered login checks. Each check short-circuits:
// lookup, expiry, password, enrollment, seed decryption, OTP.
//
// The error is non-nil only when the store failed (common.ErrorStore); the
// result is then meaningless.
func (a *Authenticator) Authenticate(ctx context.Context, req AuthRequest) (AuthResult, error) {
	req.Username = strings.TrimSpace(req.Username)

	result, err := a.authenticate(ctx, req)
	if err != nil {
		a.log.Error(ctx, "authentication aborted", "username", req.Username, "error", err)
		return result, err
	}

	a.log.Info(ctx, "authentication finished", "username", req.Username, "result", result.String())
	return result, nil
}

func (a *Authenticator) authenticate(ctx context.Context, req AuthRequest) (AuthResult, error) {
	db, err := a.conn.Conn(ctx)
	if err != nil {
		return UserNotFound, storeError(err)
	}
	repo := a.repomanager.Credentials(db)

	rec, err := repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return UserNotFound, nil
		}
		return UserNotFound, storeError(err)
	}

	now := a.now()

	if rec.Expired || a.passwords.IsExpired(rec.GeneratedAt, now.Unix()) {
		if err := repo.SetExpired(ctx, rec.Username); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return UserNotFound, nil
			}
			return PasswordExpired, storeError(err)
		}
		return PasswordExpired, nil
	}

	if !a.passwords.Verify(req.Password, rec.PasswordHash) {
		return InvalidPassword, nil
	}

	if !rec.HasMFA() {
		return MfaNotEnrolled, nil
	}

	secret, err := a.codec.Decrypt(*rec.MFASecretEncrypted)
	if err != nil {
		// seed unreadable with the current key; indistinguishable from a bad code
		a.log.Warn(ctx, "mfa secret could not be decrypted", "username", rec.Username)
		return InvalidOtp, nil
	}

	if !a.validateOTP(req.OTP, secret, now, a.opts) {
		return InvalidOtp, nil
	}

	return Authenticated, nil
}
