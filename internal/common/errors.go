// Package common defines shared constants and sentinel errors used across
// the authentication core and its transports. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorInvalidInput = errors.New("invalid input")

	// Password policy violation, recoverable by re-provisioning.
	ErrorPasswordExpired = errors.New("password expired")

	// Wrong password or OTP.
	ErrorInvalidCredential = errors.New("invalid credential")

	// Secret codec failures. Never leaves the authenticator as-is.
	ErrorCrypto = errors.New("crypto error")

	// The credential store is unreachable or a write failed; the effects of
	// the operation are unknown.
	ErrorStore = errors.New("store error")
)
