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

// Package server runs the sharelock daemon: the REST API over the
// components assembled by package app, with metrics collection, health
// probes and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-sharelock/internal/app"
	"github.com/jeremyhahn/go-sharelock/internal/config"
	"github.com/jeremyhahn/go-sharelock/internal/rest"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/metrics"
	"github.com/jeremyhahn/go-sharelock/pkg/ratelimit"
)

// ErrFilesRootRequired is returned by New when files.root is unset. The
// REST API only serves assets beneath a configured root.
var ErrFilesRootRequired = errors.New("files.root must be set to serve the REST API")

// Server represents the sharelock daemon
type Server struct {
	config *config.Config
	mu     sync.RWMutex
	app    *app.App
	logger logger.Logger

	restServer *rest.Server
	listener   net.Listener
	limiter    *ratelimit.Limiter

	metricsCollector *metrics.ResourceCollector

	// Lifecycle
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	serveErr     chan error
	shutdownOnce sync.Once
}

// New creates a daemon from cfg. opts are passed through to app.New.
func New(cfg *config.Config, opts ...app.Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Files.Root == "" {
		return nil, ErrFilesRootRequired
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	components, err := app.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		app:      components,
		logger:   components.Logger,
		ctx:      ctx,
		cancel:   cancel,
		serveErr: make(chan error, 1),
	}

	if err := s.initializeREST(); err != nil {
		cancel()
		_ = components.Close()
		return nil, fmt.Errorf("failed to initialize REST server: %w", err)
	}
	return s, nil
}

func (s *Server) initializeREST() error {
	tlsConfig, err := s.config.TLS.LoadTLSConfig()
	if err != nil {
		return err
	}

	if s.config.RateLimit.Enabled {
		s.limiter = ratelimit.New(&ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: s.config.RateLimit.RequestsPerMin,
			Burst:             s.config.RateLimit.Burst,
			RejectionPenalty:  s.config.RateLimit.RejectionPenalty,
			CleanupInterval:   s.config.RateLimit.CleanupInterval,
			TrustProxyHeaders: s.config.RateLimit.TrustProxyHeaders,
		})
	}

	restCfg := &rest.Config{
		Addr:         s.config.Server.Addr(),
		Manager:      s.app.Manager,
		Version:      Version(),
		TLSConfig:    tlsConfig,
		RateLimiter:  s.limiter,
		Auditor:      s.app.Auditor,
		Logger:       s.logger,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
	if s.config.Auth.Enabled {
		restCfg.APIKeys = s.config.Auth.APIKeys
	}
	if s.config.Health.Enabled {
		restCfg.HealthChecker = s.app.Health
	}
	if s.config.Metrics.Enabled {
		restCfg.MetricsPath = s.config.Metrics.Path
	}

	s.restServer, err = rest.NewServer(restCfg)
	if err != nil {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		return err
	}
	return nil
}

// Start binds the listener and serves in the background. It returns once
// the address is bound; serve failures surface through Wait.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already started")
	}

	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	s.listener = ln

	if s.config.Metrics.Enabled {
		s.metricsCollector = metrics.StartResourceCollector(s.ctx, s.config.Metrics.CollectInterval,
			metrics.WithInventory(s.app.Manager.Inventory))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.restServer.Serve(ln); err != nil {
			s.logger.Error("REST server failed", logger.Error(err))
			s.serveErr <- err
		}
	}()

	s.app.Health.MarkStarted()
	s.logger.Info("sharelock started",
		logger.String("addr", ln.Addr().String()),
		logger.String("version", Version()),
		logger.Bool("tls", s.config.TLS.Enabled),
		logger.String("storage", s.config.Storage.Backend))
	return nil
}

// Addr returns the bound listener address, or the configured one before
// Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Server.Addr()
}

// App exposes the assembled components.
func (s *Server) App() *app.App {
	return s.app
}

// RESTServer returns the REST server.
func (s *Server) RESTServer() *rest.Server {
	return s.restServer
}

// Wait blocks until ctx is done or the REST server fails, whichever
// comes first, and returns the serve error if any.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.serveErr:
		return err
	}
}

// Shutdown stops accepting requests, drains in-flight ones within the
// configured shutdown timeout and releases every component. It is safe to
// call more than once.
func (s *Server) Shutdown() error {
	var errs []error
	s.shutdownOnce.Do(func() {
		s.logger.Info("Shutting down server...")
		s.app.Health.MarkNotStarted()

		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.mu.RLock()
		started := s.listener != nil
		s.mu.RUnlock()
		if started {
			if err := s.restServer.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if s.metricsCollector != nil {
			s.metricsCollector.Stop()
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}

		s.cancel()
		s.wg.Wait()

		if err := s.app.Close(); err != nil {
			errs = append(errs, err)
		}
		s.logger.Info("Server shutdown complete")
	})
	return errors.Join(errs...)
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Version reports the build version from VCS or module information.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
