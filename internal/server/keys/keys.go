// Package keys resolves the master key protecting TOTP seeds at rest.
package keys

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/cryptox"
	"github.com/dmitrijs2005/cofrapauth/internal/server/config"
)

var (
	ErrInvalidKeyLength = errors.New("master key must be 32 bytes")
	ErrKeyFormat        = errors.New("master key is not valid base64")
	ErrNoKeySource      = errors.New("no master key source configured")
	ErrKMSDecrypt       = errors.New("kms decrypt failed")
)

type kmsDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// test seams
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig
	newKMSClient         = func(cfg aws.Config, optFns ...func(*kms.Options)) kmsDecrypter {
		return kms.NewFromConfig(cfg, optFns...)
	}
	readFile = os.ReadFile
)

// Source names where LoadMasterKey will take the key from. It never exposes
// key material and is safe to log.
func Source(cfg *config.Config) string {
	switch {
	case cfg.KMSEncryptedKey != "":
		return "kms"
	case cfg.MFAKey != "":
		return "env"
	case cfg.MFAKeyFile != "":
		return "file"
	default:
		return "none"
	}
}

// LoadMasterKey returns the 32-byte master key. Sources are tried in order:
// a KMS-wrapped blob, the inline base64 key, the key file.
func LoadMasterKey(ctx context.Context, cfg *config.Config) ([]byte, error) {
	var (
		key []byte
		err error
	)

	switch Source(cfg) {
	case "kms":
		key, err = decryptWithKMS(ctx, cfg)
	case "env":
		key, err = decodeKey(cfg.MFAKey)
	case "file":
		var raw []byte
		raw, err = readFile(cfg.MFAKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read master key file: %w", err)
		}
		key, err = decodeKey(string(raw))
		common.WipeByteArray(raw)
	default:
		return nil, ErrNoKeySource
	}
	if err != nil {
		return nil, err
	}

	if len(key) != cryptox.KeySize {
		common.WipeByteArray(key)
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}

	return key, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, ErrKeyFormat
	}
	return key, nil
}

func decryptWithKMS(ctx context.Context, cfg *config.Config) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.KMSEncryptedKey))
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted key is not valid base64", ErrKMSDecrypt)
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.KMSRegion)}
	if cfg.KMSAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.KMSAccessKey, cfg.KMSSecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newKMSClient(awsCfg, func(o *kms.Options) {
		if cfg.KMSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.KMSEndpoint)
		}
	})

	out, err := client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKMSDecrypt, err)
	}

	return out.Plaintext, nil
}

// Generate returns a fresh random key, base64 encoded, suitable for MFA_KEY
// or the key file.
func Generate() string {
	key := common.GenerateRandByteArray(cryptox.KeySize)
	defer common.WipeByteArray(key)

	return base64.StdEncoding.EncodeToString(key)
}
