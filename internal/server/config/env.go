package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays variables that are set in the environment. Unset
// variables leave the current value alone.
func parseEnv(config *Config) error {
	return env.Parse(config)
}
