package models

import "time"

// Credential is the per-user authentication record.
//
// MFASecretEncrypted holds the codec ciphertext of the base32 TOTP seed and
// is nil until the user enrolls. GeneratedAt is in seconds since the epoch.
type Credential struct {
	ID                 int64
	Username           string
	PasswordHash       string
	MFASecretEncrypted *string
	GeneratedAt        int64
	Expired            bool
	UpdatedAt          time.Time
}

func (c *Credential) HasMFA() bool {
	return c.MFASecretEncrypted != nil && *c.MFASecretEncrypted != ""
}
