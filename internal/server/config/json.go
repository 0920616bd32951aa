package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cofrapauth/internal/flagx"
	"github.com/dmitrijs2005/cofrapauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Duration fields
// use timex.Duration so both "30m" and integer nanoseconds are accepted.
type JsonConfig struct {
	HTTPAddr             string         `json:"http_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	DBHost               string         `json:"db_host"`
	DBPort               string         `json:"db_port"`
	DBName               string         `json:"db_name"`
	DBUser               string         `json:"db_user"`
	DBPasswordFile       string         `json:"db_password_file"`
	DBMaxOpenConns       int            `json:"db_max_open_conns"`
	DBConnMaxLifetime    timex.Duration `json:"db_conn_max_lifetime"`
	MFAKey               string         `json:"mfa_key"`
	MFAKeyFile           string         `json:"mfa_key_file"`
	KMSEncryptedKey      string         `json:"kms_encrypted_key"`
	KMSRegion            string         `json:"kms_region"`
	KMSEndpoint          string         `json:"kms_endpoint"`
	KMSAccessKey         string         `json:"kms_access_key"`
	KMSSecretKey         string         `json:"kms_secret_key"`
	Issuer               string         `json:"issuer"`
	PasswordLength       int            `json:"password_length"`
	PasswordValidityDays int            `json:"password_validity_days"`
	BcryptCost           int            `json:"bcrypt_cost"`
	OTPSkew              uint           `json:"otp_skew"`
	OTPPeriod            uint           `json:"otp_period"`
	OTPDigits            int            `json:"otp_digits"`
	QRCodeSize           int            `json:"qrcode_size"`
	CORSAllowedOrigins   []string       `json:"cors_allowed_origins"`
	ShutdownTimeout      timex.Duration `json:"shutdown_timeout"`
	LogLevel             string         `json:"log_level"`
	LogFormat            string         `json:"log_format"`
	LogBackend           string         `json:"log_backend"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:             c.HTTPAddr,
		DatabaseDSN:          c.DatabaseDSN,
		DBHost:               c.DBHost,
		DBPort:               c.DBPort,
		DBName:               c.DBName,
		DBUser:               c.DBUser,
		DBPasswordFile:       c.DBPasswordFile,
		DBMaxOpenConns:       c.DBMaxOpenConns,
		DBConnMaxLifetime:    timex.Duration{Duration: c.DBConnMaxLifetime},
		MFAKey:               c.MFAKey,
		MFAKeyFile:           c.MFAKeyFile,
		KMSEncryptedKey:      c.KMSEncryptedKey,
		KMSRegion:            c.KMSRegion,
		KMSEndpoint:          c.KMSEndpoint,
		KMSAccessKey:         c.KMSAccessKey,
		KMSSecretKey:         c.KMSSecretKey,
		Issuer:               c.Issuer,
		PasswordLength:       c.PasswordLength,
		PasswordValidityDays: c.PasswordValidityDays,
		BcryptCost:           c.BcryptCost,
		OTPSkew:              c.OTPSkew,
		OTPPeriod:            c.OTPPeriod,
		OTPDigits:            c.OTPDigits,
		QRCodeSize:           c.QRCodeSize,
		CORSAllowedOrigins:   c.CORSAllowedOrigins,
		ShutdownTimeout:      timex.Duration{Duration: c.ShutdownTimeout},
		LogLevel:             c.LogLevel,
		LogFormat:            c.LogFormat,
		LogBackend:           c.LogBackend,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.DBHost = j.DBHost
	c.DBPort = j.DBPort
	c.DBName = j.DBName
	c.DBUser = j.DBUser
	c.DBPasswordFile = j.DBPasswordFile
	c.DBMaxOpenConns = j.DBMaxOpenConns
	c.DBConnMaxLifetime = j.DBConnMaxLifetime.Duration
	c.MFAKey = j.MFAKey
	c.MFAKeyFile = j.MFAKeyFile
	c.KMSEncryptedKey = j.KMSEncryptedKey
	c.KMSRegion = j.KMSRegion
	c.KMSEndpoint = j.KMSEndpoint
	c.KMSAccessKey = j.KMSAccessKey
	c.KMSSecretKey = j.KMSSecretKey
	c.Issuer = j.Issuer
	c.PasswordLength = j.PasswordLength
	c.PasswordValidityDays = j.PasswordValidityDays
	c.BcryptCost = j.BcryptCost
	c.OTPSkew = j.OTPSkew
	c.OTPPeriod = j.OTPPeriod
	c.OTPDigits = j.OTPDigits
	c.QRCodeSize = j.QRCodeSize
	c.CORSAllowedOrigins = j.CORSAllowedOrigins
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
	c.LogBackend = j.LogBackend
}

// parseJson overlays values from the file named by -c / -config. Keys missing
// from the file keep their current value. No flag means nothing to load.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}
	c.apply(config)

	return nil
}
