package config

import (
	"flag"

	"github.com/dmitrijs2005/cofrapauth/internal/flagx"
)

// parseFlags overlays the command-line flags that take precedence over
// every other source:
//
//	-a string   HTTP bind address (":8080")
//	-d string   PostgreSQL DSN
//	-k string   path to the master key file
//	-i string   TOTP issuer name
//	-w uint     OTP skew window, in time steps
//	-l string   log level
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-k", "-i", "-w", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to listen on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MFAKeyFile, "k", config.MFAKeyFile, "master key file")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "TOTP issuer")
	fs.UintVar(&config.OTPSkew, "w", config.OTPSkew, "OTP skew (steps)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
