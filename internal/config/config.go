// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sharelock.
//
// go-sharelock is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the sharelock YAML configuration used by the
// daemon and the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHARELOCK_"

// EnvConfigPath names a config file when no path is given explicitly.
const EnvConfigPath = EnvPrefix + "CONFIG"

// Storage backend names
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageBadger = "badger"
)

// Config represents the complete sharelock configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	TLS        TLSConfig        `yaml:"tls"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Health     HealthConfig     `yaml:"health"`
	Storage    StorageConfig    `yaml:"storage"`
	Commitment CommitmentConfig `yaml:"commitment"`
	Cipher     CipherConfig     `yaml:"cipher"`
	Files      FilesConfig      `yaml:"files"`
	RNG        RNGConfig        `yaml:"rng"`
	Audit      AuditConfig      `yaml:"audit"`
}

// ServerConfig contains REST listener settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig enables API key authentication on the /api routes.
// APIKeys maps a key to the subject it authenticates.
type AuthConfig struct {
	Enabled bool              `yaml:"enabled"`
	APIKeys map[string]string `yaml:"api_keys,omitempty"`
}

// RateLimitConfig controls per-client request limiting
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMin    int           `yaml:"requests_per_min"`
	Burst             int           `yaml:"burst"`
	RejectionPenalty  int           `yaml:"rejection_penalty"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Adapter selects slog (default) or zap
	Adapter string `yaml:"adapter"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Path            string        `yaml:"path"`
	CollectInterval time.Duration `yaml:"collect_interval"`
}

// HealthConfig controls the health endpoints
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Path         string        `yaml:"path"`
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// StorageConfig selects where scheme records and asset links live
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// CommitmentConfig selects the commitment hash and its cost
type CommitmentConfig struct {
	Algorithm     string `yaml:"algorithm"`
	Iterations    int    `yaml:"iterations"`
	Argon2Memory  uint32 `yaml:"argon2_memory"`
	Argon2Time    uint32 `yaml:"argon2_time"`
	Argon2Threads uint8  `yaml:"argon2_threads"`
}

// CipherConfig controls the file cipher. MaxAge of zero accepts tokens of
// any age.
type CipherConfig struct {
	KeyMode string        `yaml:"key_mode"`
	MaxAge  time.Duration `yaml:"max_age"`
}

// FilesConfig confines asset paths. When Root is set every path is
// resolved beneath it.
type FilesConfig struct {
	Root string `yaml:"root"`
}

// RNGConfig selects the entropy source for share generation
type RNGConfig struct {
	Mode     string `yaml:"mode"`
	Fallback string `yaml:"fallback"`
	Device   string `yaml:"device"`
}

// AuditConfig selects the audit sink. "log" writes events through the
// service logger; "memory" retains the last Capacity events in process.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Adapter  string `yaml:"adapter"`
	Capacity int    `yaml:"capacity"`
}

// Default returns a configuration that runs without a config file:
// in-memory storage, PBKDF2 commitments, legacy keys and software RNG.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8443,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin:   600,
			Burst:            60,
			RejectionPenalty: 5,
			CleanupInterval:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "text",
			Adapter: "slog",
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			Path:            "/metrics",
			CollectInterval: 15 * time.Second,
		},
		Health: HealthConfig{
			Enabled:      true,
			Path:         "/health",
			CheckTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Backend: StorageMemory,
		},
		Commitment: CommitmentConfig{
			Algorithm:  "pbkdf2_sha256",
			Iterations: 600000,
		},
		Cipher: CipherConfig{
			KeyMode: "legacy",
		},
		RNG: RNGConfig{
			Mode: "software",
		},
		Audit: AuditConfig{
			Enabled: true,
			Adapter: "log",
		},
	}
}

// Load reads configuration from a YAML file over the defaults and applies
// environment variable overrides. An empty path falls back to
// SHARELOCK_CONFIG, and to the defaults alone when that is unset too.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SHARELOCK_* variables. Malformed numeric
// values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if host := os.Getenv(EnvPrefix + "HOST"); host != "" {
		cfg.Server.Host = host
	}
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT value %q: %w", EnvPrefix, v, err)
		}
		cfg.Server.Port = port
	}

	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv(EnvPrefix + "LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if backend := os.Getenv(EnvPrefix + "STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv(EnvPrefix + "DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}
	if root := os.Getenv(EnvPrefix + "FILES_ROOT"); root != "" {
		cfg.Files.Root = root
	}
	if mode := os.Getenv(EnvPrefix + "KEY_MODE"); mode != "" {
		cfg.Cipher.KeyMode = mode
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, error, or fatal)", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true, "console": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json, text, or console)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Adapter) {
	case "", "slog", "zap":
	default:
		return fmt.Errorf("invalid log adapter: %s (must be slog or zap)", c.Logging.Adapter)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth enabled but no api_keys configured")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("ratelimit requests_per_min must be positive when enabled")
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile, StorageBadger:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend: %q (must be memory, file, or badger)", c.Storage.Backend)
	}

	switch c.Commitment.Algorithm {
	case "pbkdf2_sha256", "argon2id":
	default:
		return fmt.Errorf("unknown commitment algorithm: %q", c.Commitment.Algorithm)
	}

	switch c.Cipher.KeyMode {
	case "legacy", "hkdf":
	default:
		return fmt.Errorf("unknown cipher key_mode: %q (must be legacy or hkdf)", c.Cipher.KeyMode)
	}
	if c.Cipher.MaxAge < 0 {
		return fmt.Errorf("cipher max_age cannot be negative")
	}

	switch c.RNG.Mode {
	case "software", "device", "auto":
	default:
		return fmt.Errorf("unknown rng mode: %q", c.RNG.Mode)
	}

	if c.Audit.Enabled {
		switch c.Audit.Adapter {
		case "", "log", "memory":
		default:
			return fmt.Errorf("unknown audit adapter: %q (must be log or memory)", c.Audit.Adapter)
		}
		if c.Audit.Capacity < 0 {
			return fmt.Errorf("audit capacity cannot be negative")
		}
	}
	return nil
}
