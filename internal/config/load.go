package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load resolves the process-wide Config using the three-layer override
// chain: defaults, then the TOML file at path (if it exists), then
// environment variables. A missing config file is not an error — the
// defaults (possibly overridden by environment) are used instead.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()

	if path != "" {
		if err := applyFile(path, cfg, logger); err != nil {
			return nil, err
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyFile decodes the TOML file at path onto cfg, tolerating a missing
// file (layer 0 defaults then apply unchanged).
func applyFile(path string, cfg *Config, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no config file found, using defaults", "path", path)
			return nil
		}

		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	logger.Debug("config file loaded", "path", path)

	return nil
}
