// Package totpx wraps github.com/pquerna/otp with the parameters this service
// uses: SHA1, configurable period, digits and clock skew tolerance.
package totpx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultPeriod = 30
	DefaultDigits = 6
	DefaultSkew   = 1

	// 160 bits, as recommended by RFC 4226.
	SecretSize = 20
)

var (
	ErrMissingAccountName = errors.New("missing account name")
	ErrMissingIssuer      = errors.New("missing issuer")
	ErrInvalidDigits      = errors.New("digits must be 6 or 8")
	ErrInvalidPeriod      = errors.New("period must be positive")
)

// Options describes how seeds are provisioned and codes are checked.
type Options struct {
	Issuer string
	Period uint
	Digits int
	// Skew is the number of adjacent time steps accepted on each side of
	// the current one.
	Skew uint
}

// DefaultOptions returns the RFC 6238 defaults with one step of skew.
func DefaultOptions(issuer string) Options {
	return Options{Issuer: issuer, Period: DefaultPeriod, Digits: DefaultDigits, Skew: DefaultSkew}
}

// Validate checks the option values.
func (o Options) Validate() error {
	if o.Issuer == "" {
		return ErrMissingIssuer
	}
	if o.Period == 0 {
		return ErrInvalidPeriod
	}
	if o.Digits != 6 && o.Digits != 8 {
		return ErrInvalidDigits
	}
	return nil
}

func (o Options) digits() otp.Digits {
	if o.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

func (o Options) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    o.Period,
		Skew:      o.Skew,
		Digits:    o.digits(),
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateKey creates a fresh random base32 seed for account and returns it
// together with its otpauth://totp provisioning URI.
func GenerateKey(opts Options, account string) (*otp.Key, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(account) == "" {
		return nil, ErrMissingAccountName
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      opts.Issuer,
		AccountName: account,
		Period:      opts.Period,
		SecretSize:  SecretSize,
		Digits:      opts.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return key, nil
}

// Code computes the code for secret at t. Mostly useful to tests and the CLI.
func Code(secret string, t time.Time, opts Options) (string, error) {
	return totp.GenerateCodeCustom(secret, t, opts.validateOpts())
}

// Validate reports whether code matches secret at t, accepting opts.Skew
// steps before and after the current one. Malformed codes or secrets yield
// false.
func Validate(code, secret string, t time.Time, opts Options) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, opts.validateOpts())
	if err != nil {
		return false
	}
	return ok
}
