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

// Package app assembles the sharelock components described by a
// config.Config: logger, storage backend, entropy source, commitment
// hasher, file cipher, engine, scheme manager and health checks. The
// daemon and the CLI both build on it.
package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeremyhahn/go-sharelock/internal/config"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/audit"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/crypto/filecipher"
	"github.com/jeremyhahn/go-sharelock/pkg/crypto/keyderiv"
	"github.com/jeremyhahn/go-sharelock/pkg/crypto/rand"
	"github.com/jeremyhahn/go-sharelock/pkg/health"
	"github.com/jeremyhahn/go-sharelock/pkg/scheme"
	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
	"github.com/jeremyhahn/go-sharelock/pkg/storage"
	"github.com/jeremyhahn/go-sharelock/pkg/storage/badger"
	"github.com/jeremyhahn/go-sharelock/pkg/storage/file"
	"github.com/jeremyhahn/go-sharelock/pkg/storage/memory"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/commitment"
	"github.com/spf13/afero"
)

// App holds the assembled components. Close releases them.
type App struct {
	Config  *config.Config
	Logger  logger.Logger
	Store   storage.Backend
	Engine  *sharelock.Engine
	Manager *scheme.Manager
	Health  *health.Checker
	Auditor audit.AuditAdapter

	fs  afero.Fs
	rng rand.Resolver
}

// Option overrides a component New would otherwise build from config.
type Option func(*options)

type options struct {
	logger logger.Logger
	fs     afero.Fs
	store  storage.Backend
}

// WithLogger uses l instead of building one from the logging section.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFs serves asset files from fsys. files.root still applies on top.
func WithFs(fsys afero.Fs) Option {
	return func(o *options) { o.fs = fsys }
}

// WithStorage uses store instead of opening the configured backend.
// The App takes ownership and closes it.
func WithStorage(store storage.Backend) Option {
	return func(o *options) { o.store = store }
}

// New builds every component from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: o.logger}
	if a.Logger == nil {
		l, err := NewLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		a.Logger = l
	}

	a.fs = o.fs
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}

	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	a.Store = o.store
	if a.Store == nil {
		store, err := NewStorage(cfg.Storage, a.fs, a.Logger)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	rng, err := rand.NewResolver(&rand.Config{
		Mode:         rand.Mode(cfg.RNG.Mode),
		FallbackMode: rand.Mode(cfg.RNG.Fallback),
		Device:       cfg.RNG.Device,
	})
	if err != nil {
		return nil, fmt.Errorf("rng: %w", err)
	}
	a.rng = rng

	hasher, err := NewHasher(cfg.Commitment, rng)
	if err != nil {
		return nil, err
	}

	mode, err := keyderiv.ParseMode(cfg.Cipher.KeyMode)
	if err != nil {
		return nil, err
	}

	assets := a.fs
	if cfg.Files.Root != "" {
		assets = afero.NewBasePathFs(a.fs, cfg.Files.Root)
	}
	var cipherOpts []filecipher.Option
	if cfg.Cipher.MaxAge > 0 {
		cipherOpts = append(cipherOpts, filecipher.WithMaxAge(cfg.Cipher.MaxAge))
	}

	a.Engine, err = sharelock.New(
		sharelock.WithRand(rng),
		sharelock.WithHasher(hasher),
		sharelock.WithCipher(filecipher.New(assets, cipherOpts...)),
		sharelock.WithKeyMode(mode),
		sharelock.WithLogger(a.Logger),
	)
	if err != nil {
		return nil, err
	}

	a.Auditor, err = NewAuditor(cfg.Audit, a.Logger)
	if err != nil {
		return nil, err
	}

	a.Manager, err = scheme.NewManager(a.Engine, a.Store,
		scheme.WithLogger(a.Logger),
		scheme.WithAuditor(a.Auditor))
	if err != nil {
		return nil, err
	}

	a.Health = health.NewChecker(health.WithCheckTimeout(cfg.Health.CheckTimeout))
	a.Health.RegisterCheck("storage", health.StorageCheck(a.Store))
	a.Health.RegisterCheck("assets", health.AssetsCheck(a.Manager.DanglingAssets))
	if cfg.Files.Root != "" {
		a.Health.RegisterCheck("files", health.FilesCheck(a.fs, cfg.Files.Root))
	}

	a.Logger.Debug("components initialized",
		logger.String("storage", backendName(cfg.Storage.Backend)),
		logger.String("commitment", string(hasher.Algorithm())),
		logger.String("key_mode", string(mode)))
	ok = true
	return a, nil
}

// Close releases the storage backend and the entropy source and flushes
// the logger.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if a.rng != nil {
		if err := a.rng.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rng: %w", err))
		}
	}
	if s, ok := a.Logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return errors.Join(errs...)
}

// NewAuditor builds the audit sink selected by cfg. A disabled section
// yields an adapter that records nothing.
func NewAuditor(cfg config.AuditConfig, l logger.Logger) (audit.AuditAdapter, error) {
	if !cfg.Enabled {
		return audit.NewNopAuditAdapter(), nil
	}
	switch cfg.Adapter {
	case "", "log":
		return audit.NewLoggerAuditAdapter(l), nil
	case "memory":
		return audit.NewMemoryAuditAdapter(cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("unknown audit adapter: %q", cfg.Adapter)
	}
}

// NewLogger builds the logging adapter selected by cfg.Adapter.
func NewLogger(cfg config.LoggingConfig) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Adapter) {
	case "zap":
		return logger.NewZapAdapter(&logger.ZapConfig{
			Level:      level,
			Production: cfg.Format == "json",
		})
	case "", "slog":
		return logger.NewSlogAdapter(&logger.SlogConfig{
			Level:  level,
			Format: cfg.Format,
			Output: os.Stderr,
		}), nil
	default:
		return nil, fmt.Errorf("unknown logging adapter: %s", cfg.Adapter)
	}
}

// NewStorage opens the backend named by cfg.Backend. The file backend
// stores under cfg.Path on fsys.
func NewStorage(cfg config.StorageConfig, fsys afero.Fs, log logger.Logger) (storage.Backend, error) {
	switch backendName(cfg.Backend) {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageFile:
		return file.New(fsys, cfg.Path)
	case config.StorageBadger:
		return badger.Open(badger.Config{
			Dir:        cfg.Path,
			SyncWrites: cfg.SyncWrites,
			Logger:     log,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// NewHasher builds the commitment hasher. Zero costs keep the
// algorithm's defaults; costs for the other algorithm are ignored.
func NewHasher(cfg config.CommitmentConfig, rng rand.Resolver) (*commitment.Hasher, error) {
	algorithm := kdf.Algorithm(cfg.Algorithm)
	if algorithm == "" {
		algorithm = kdf.AlgorithmPBKDF2SHA256
	}
	opts := []commitment.Option{
		commitment.WithRand(rng),
		commitment.WithAlgorithm(algorithm),
	}

	switch algorithm {
	case kdf.AlgorithmPBKDF2SHA256:
		if cfg.Iterations > 0 {
			opts = append(opts, commitment.WithIterations(cfg.Iterations))
		}
	case kdf.AlgorithmArgon2id:
		def := kdf.DefaultParams(kdf.AlgorithmArgon2id)
		mem, passes, threads := def.Memory, def.Time, def.Threads
		if cfg.Argon2Memory > 0 {
			mem = cfg.Argon2Memory
		}
		if cfg.Argon2Time > 0 {
			passes = cfg.Argon2Time
		}
		if cfg.Argon2Threads > 0 {
			threads = cfg.Argon2Threads
		}
		opts = append(opts, commitment.WithArgon2Cost(mem, passes, threads))
	}
	return commitment.New(opts...)
}

func backendName(b string) string {
	if b == "" {
		return config.StorageMemory
	}
	return strings.ToLower(b)
}
