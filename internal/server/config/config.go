// Package config handles configuration for the authentication server:
// defaults, JSON overlay, environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/passwords"
)

var ErrInvalidConfig = errors.New("invalid config")

// readFile is a test seam for secret files.
var readFile = os.ReadFile

// Config holds runtime settings for the server.
//
// Secrets (DB password, master key) are referenced by file path where
// possible; the inline MFAKey and KMS fields exist for environments without
// mounted secrets.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	DBHost            string        `env:"DB_HOST"`
	DBPort            string        `env:"DB_PORT"`
	DBName            string        `env:"DB_NAME"`
	DBUser            string        `env:"DB_USER"`
	DBPasswordFile    string        `env:"DB_PASSWORD_FILE"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME"`

	MFAKey          string `env:"MFA_KEY"`
	MFAKeyFile      string `env:"MFA_KEY_FILE"`
	KMSEncryptedKey string `env:"KMS_ENCRYPTED_KEY"`
	KMSRegion       string `env:"KMS_REGION"`
	KMSEndpoint     string `env:"KMS_ENDPOINT"`
	KMSAccessKey    string `env:"KMS_ACCESS_KEY"`
	KMSSecretKey    string `env:"KMS_SECRET_KEY"`

	Issuer               string `env:"MFA_ISSUER"`
	PasswordLength       int    `env:"PASSWORD_LENGTH"`
	PasswordValidityDays int    `env:"PASSWORD_VALIDITY_DAYS"`
	BcryptCost           int    `env:"BCRYPT_COST"`
	OTPSkew              uint   `env:"OTP_SKEW"`
	OTPPeriod            uint   `env:"OTP_PERIOD"`
	OTPDigits            int    `env:"OTP_DIGITS"`
	QRCodeSize           int    `env:"QRCODE_SIZE"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT"`

	LogLevel   string `env:"LOG_LEVEL"`
	LogFormat  string `env:"LOG_FORMAT"`
	LogBackend string `env:"LOG_BACKEND"`
}

// LoadDefaults populates Config with values suited to the OpenFaaS deployment.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DatabaseDSN = ""
	c.DBHost = "postgres"
	c.DBPort = "5432"
	c.DBName = "cofrap"
	c.DBUser = "postgres"
	c.DBPasswordFile = "/var/openfaas/secrets/postgres-password"
	c.DBMaxOpenConns = 10
	c.DBConnMaxLifetime = 30 * time.Minute
	c.MFAKeyFile = "/var/openfaas/secrets/mfa-key"
	c.KMSRegion = "us-east-1"
	c.Issuer = common.DefaultIssuer
	c.PasswordLength = 24
	c.PasswordValidityDays = 180
	c.BcryptCost = 10
	c.OTPSkew = 1
	c.OTPPeriod = 30
	c.OTPDigits = 6
	c.QRCodeSize = 256
	c.CORSAllowedOrigins = []string{"*"}
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.LogBackend = "zap"
}

// LoadConfig builds a Config from defaults, then an optional JSON file
// (-c/-config), then the environment, then command-line flags. args are the
// process arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN returns DatabaseDSN when set. Otherwise it assembles a postgres URL
// from the DB_* parts, reading the password from DBPasswordFile.
func (c *Config) DSN() (string, error) {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN, nil
	}

	raw, err := readFile(c.DBPasswordFile)
	if err != nil {
		return "", fmt.Errorf("read db password file: %w", err)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, strings.TrimSpace(string(raw))),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String(), nil
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, fmt.Errorf("%w: http address is empty", ErrInvalidConfig))
	}
	if c.PasswordLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: password length must be positive", ErrInvalidConfig))
	}
	if c.PasswordLength > passwords.MaxLength {
		errs = append(errs, fmt.Errorf("%w: password length exceeds %d", ErrInvalidConfig, passwords.MaxLength))
	}
	if c.PasswordValidityDays < 1 {
		errs = append(errs, fmt.Errorf("%w: password validity must be at least one day", ErrInvalidConfig))
	}
	if c.OTPPeriod == 0 {
		errs = append(errs, fmt.Errorf("%w: otp period must be positive", ErrInvalidConfig))
	}
	if c.OTPDigits != 6 && c.OTPDigits != 8 {
		errs = append(errs, fmt.Errorf("%w: otp digits must be 6 or 8", ErrInvalidConfig))
	}
	if c.QRCodeSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: qrcode size must be positive", ErrInvalidConfig))
	}
	if c.DBMaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("%w: db max open conns is negative", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}
