// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the DSN goes to the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"pgload/cli/internal/xdg"
)

// DefaultCommitThreshold is the checkpoint cadence used when neither the
// config file nor --partial-commit-after provides one.
const DefaultCommitThreshold = 1_000_000

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel        string `json:"log_level"`
	CommitThreshold int64  `json:"commit_threshold"`
	ChunkSizeBytes  int    `json:"chunk_size_bytes"`
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults.
func Load() (Config, error) {
	var c Config
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	// Partially filled files fall back field by field.
	d := Defaults()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.CommitThreshold <= 0 {
		c.CommitThreshold = d.CommitThreshold
	}
	if c.ChunkSizeBytes <= 0 {
		c.ChunkSizeBytes = d.ChunkSizeBytes
	}
	return c, nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel:        "info",
		CommitThreshold: DefaultCommitThreshold,
		ChunkSizeBytes:  1 << 20,
	}
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
