// Package passwords generates, hashes and verifies user passwords and
// applies the password age policy.
package passwords

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Charset is the alphabet generated passwords are drawn from.
	Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()_+"

	DefaultLength       = 24
	DefaultValidityDays = 180

	// MaxLength is the longest password bcrypt hashes in full.
	MaxLength = 72

	secondsPerDay = 24 * 3600
)

var (
	ErrInvalidLength    = errors.New("password length must be positive")
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes")
	ErrEmptyPassword    = errors.New("empty password")
	ErrInvalidCost      = errors.New("invalid bcrypt cost")
	ErrInvalidValidity  = errors.New("validity window must be at least one day")
	ErrRandSourceFailed = errors.New("random source failed")
)

// randReader is a test seam for the secure random source.
var randReader io.Reader = rand.Reader

// Manager bundles the hashing cost and the password age policy.
type Manager struct {
	cost         int
	validityDays int
}

// NewManager returns a Manager using the given bcrypt cost and validity
// window in days.
func NewManager(cost, validityDays int) (*Manager, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, ErrInvalidCost
	}
	if validityDays < 1 {
		return nil, ErrInvalidValidity
	}
	return &Manager{cost: cost, validityDays: validityDays}, nil
}

// Generate draws length characters uniformly from Charset.
func (m *Manager) Generate(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	if length > MaxLength {
		return "", ErrPasswordTooLong
	}

	max := big.NewInt(int64(len(Charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(randReader, max)
		if err != nil {
			return "", errors.Join(ErrRandSourceFailed, err)
		}
		out[i] = Charset[n.Int64()]
	}

	return string(out), nil
}

// Hash returns a salted bcrypt hash. Every call uses a fresh salt, so equal
// inputs produce different hashes.
func (m *Manager) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if len(plain) > MaxLength {
		return "", ErrPasswordTooLong
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plain), m.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plain matches hash. Malformed hashes and empty input
// yield false.
func (m *Manager) Verify(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsExpired applies the manager's validity window.
func (m *Manager) IsExpired(generatedAt, now int64) bool {
	return IsExpired(generatedAt, now, m.validityDays)
}

// ValidityDays returns the configured window.
func (m *Manager) ValidityDays() int {
	return m.validityDays
}

// IsExpired reports whether more than days*86400 seconds have passed between
// generatedAt and now. The boundary itself is still valid.
func IsExpired(generatedAt, now int64, days int) bool {
	return now-generatedAt > int64(days)*secondsPerDay
}
