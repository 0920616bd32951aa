package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv overlays variables from the environment. A .env file in the
// working directory is loaded first when present; it never overrides
// variables that are already set.
func parseEnv(config *Config) error {
	_ = godotenv.Load()

	return env.Parse(config)
}
