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

package cli

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-sharelock/internal/app"
	"github.com/jeremyhahn/go-sharelock/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Viper keys for the global flags. Each is also read from the
// environment as SHARELOCK_<KEY>, dashes becoming underscores.
const (
	keyConfig    = "config"
	keyOutput    = "output"
	keyVerbose   = "verbose"
	keyStorage   = "storage"
	keyDataDir   = "data-dir"
	keyFilesRoot = "files-root"
)

// DefaultDataDir holds scheme records when no storage is configured.
const DefaultDataDir = "sharelock-data"

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to a sharelock YAML config file
	ConfigFile string

	// OutputFormat controls output formatting (text, json)
	OutputFormat string

	// Verbose enables debug logging and progress messages
	Verbose bool

	// Storage overrides the storage backend (memory, file, badger)
	Storage string

	// DataDir is the storage path for the file and badger backends
	DataDir string

	// FilesRoot confines asset paths beneath a directory
	FilesRoot string

	v *viper.Viper
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("SHARELOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &Config{
		OutputFormat: string(OutputFormatText),
		DataDir:      DefaultDataDir,
		v:            v,
	}
}

// BindFlags registers flags with viper so environment variables fill in
// for flags that were not given.
func (c *Config) BindFlags(flags *pflag.FlagSet) error {
	for _, key := range []string{keyConfig, keyOutput, keyVerbose, keyStorage, keyDataDir, keyFilesRoot} {
		if f := flags.Lookup(key); f != nil {
			if err := c.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolve copies the merged flag, environment and default values into c.
func (c *Config) Resolve() error {
	c.ConfigFile = c.v.GetString(keyConfig)
	c.OutputFormat = strings.ToLower(c.v.GetString(keyOutput))
	c.Verbose = c.v.GetBool(keyVerbose)
	c.Storage = strings.ToLower(c.v.GetString(keyStorage))
	c.DataDir = c.v.GetString(keyDataDir)
	c.FilesRoot = c.v.GetString(keyFilesRoot)
	if c.OutputFormat == "" {
		c.OutputFormat = string(OutputFormatText)
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}

	switch OutputFormat(c.OutputFormat) {
	case OutputFormatText, OutputFormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s (must be text or json)", c.OutputFormat)
	}
}

// ServiceConfig loads the sharelock configuration and applies the CLI
// overrides. Without a config file the CLI persists schemes under DataDir
// rather than in memory.
func (c *Config) ServiceConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}

	switch {
	case c.Storage != "":
		cfg.Storage.Backend = c.Storage
	case c.ConfigFile == "" && cfg.Storage.Backend == config.StorageMemory:
		cfg.Storage.Backend = config.StorageFile
	}
	if cfg.Storage.Backend != config.StorageMemory && (cfg.Storage.Path == "" || c.v.IsSet(keyDataDir)) {
		cfg.Storage.Path = c.DataDir
	}
	if c.FilesRoot != "" {
		cfg.Files.Root = c.FilesRoot
	}

	// Command errors are already printed; the audit trail goes to the log
	// only when it is visible.
	cfg.Logging.Level = "error"
	cfg.Audit.Enabled = false
	if c.Verbose {
		cfg.Logging.Level = "debug"
		cfg.Audit.Enabled = true
		cfg.Audit.Adapter = "log"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Open assembles the components for a single command.
func (c *Config) Open(opts ...app.Option) (*app.App, error) {
	cfg, err := c.ServiceConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, opts...)
}
