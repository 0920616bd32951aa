// Package cryptox implements the secret codec that protects TOTP seeds at
// rest. Secrets are sealed with AES-256-GCM under a single process-wide key
// and stored as base64(nonce || ciphertext).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
)

// KeySize is the required master key length (AES-256).
const KeySize = 32

var (
	ErrInvalidKeyLength = errors.New("invalid encryption key length")
	ErrCipherTooShort   = errors.New("cipher text too short")
)

// randReader is a test seam for the nonce source.
var randReader io.Reader = rand.Reader

// Codec encrypts and decrypts secrets with one symmetric key.
// It is stateless apart from the key and safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec for the given 32-byte key. The key slice is not
// retained; callers may wipe it afterwards.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return "", errors.Join(common.ErrorCrypto, err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any failure, including a
// ciphertext sealed under another key or tampered with, matches
// common.ErrorCrypto.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Join(common.ErrorCrypto, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", errors.Join(common.ErrorCrypto, ErrCipherTooShort)
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.Join(common.ErrorCrypto, err)
	}

	return string(plain), nil
}
