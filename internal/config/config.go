// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package config loads dbkey settings from config.yaml in the data directory,
// then applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/passwordcmd"
	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

// DefaultDataDir is the default data directory.
const DefaultDataDir = "~/.dbkey"

// DataDirEnv overrides the default data directory.
const DataDirEnv = "DBKEY_DATA"

// ErrNoDataDir indicates no data directory could be determined.
var ErrNoDataDir = errors.New("could not determine data directory, use -d <path> or set " + DataDirEnv)

// SecurityConfig holds credential policy.
type SecurityConfig struct {
	DatabasePasswordMinimumQuality int `yaml:"database_password_minimum_quality" env:"DBKEY_MIN_PASSWORD_QUALITY" description:"Minimum password quality, 0 (Bad) to 4 (Excellent)" default:"0"`

	// LockMemory needs CAP_IPC_LOCK or a large RLIMIT_MEMLOCK.
	LockMemory bool `yaml:"lock_memory" env:"DBKEY_LOCK_MEMORY" description:"Lock process memory so keys never reach swap" default:"false"`
}

// QuickUnlockConfig controls remembering unlocked databases.
type QuickUnlockConfig struct {
	Enabled bool `yaml:"enabled" env:"DBKEY_QUICK_UNLOCK" description:"Allow remembering databases for quick unlock" default:"true"`
}

// Config holds dbkey configuration settings.
type Config struct {
	Security    SecurityConfig    `yaml:"security"`
	QuickUnlock QuickUnlockConfig `yaml:"quick_unlock"`
	LogLevel    string            `yaml:"log_level" env:"DBKEY_LOG_LEVEL" description:"Log level (debug, info, warn, error)" default:"info"`

	// KDF applies to databases created or rekeyed from now on.
	KDF crypto.KDFParams `yaml:"kdf" description:"Argon2id parameters for new keys"`

	// TokenSecrets lists soft token secret files, relative to the data dir.
	TokenSecrets []string `yaml:"token_secrets" description:"Software challenge-response token secret files"`

	// PasswordCommand supplies the current password when no terminal is attached.
	PasswordCommand passwordcmd.Command `yaml:"password_command"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		QuickUnlock: QuickUnlockConfig{Enabled: true},
		LogLevel:    "info",
		KDF:         crypto.DefaultKDFParams(),
	}
}

// MinimumPasswordQuality returns the configured floor clamped to 0..4.
func (c Config) MinimumPasswordQuality() int {
	return int(passwordhealth.Clamp(c.Security.DatabasePasswordMinimumQuality))
}

// DataDir returns the data directory.
// Resolution order: -d flag > DBKEY_DATA env var > ~/.dbkey
func DataDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if envDir := os.Getenv(DataDirEnv); envDir != "" {
		return envDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ErrNoDataDir
	}
	return filepath.Join(home, ".dbkey"), nil
}

// Path returns the config file path in dataDir, or "" if dataDir is empty.
func Path(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// Load reads config.yaml from dataDir and applies environment overrides.
// Relative token secret paths are resolved against dataDir.
func Load(dataDir string) (Config, error) {
	cfg, err := LoadFromPath(Path(dataDir))
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return Config{}, err
	}
	for i, p := range cfg.TokenSecrets {
		cfg.TokenSecrets[i] = ResolvePath(p, dataDir)
	}
	if cfg.PasswordCommand.Configured() {
		cfg.PasswordCommand.Argv[0] = ResolvePath(cfg.PasswordCommand.Argv[0], dataDir)
	}
	return cfg, nil
}

// LoadFromPath reads a config file over the defaults.
// A missing file or empty path yields the defaults.
func LoadFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.KDF = config.KDF.Normalize()
	return config, nil
}

// ApplyEnv overlays DBKEY_* environment variables onto cfg. When environ is
// nil the process environment is used.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	var err error
	if environ == nil {
		err = env.Parse(cfg)
	} else {
		err = env.ParseWithOptions(cfg, env.Options{Environment: environ})
	}
	if err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg.validate()
}

func (c Config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level '%s' (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.PasswordCommand.Timeout < 0 {
		return fmt.Errorf("invalid password_command timeout %s", c.PasswordCommand.Timeout)
	}
	return nil
}

// ResolvePath makes a relative path absolute against dataDir. "~/" is expanded.
func ResolvePath(path, dataDir string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if path == "" || filepath.IsAbs(path) || dataDir == "" {
		return path
	}
	return filepath.Join(dataDir, path)
}
