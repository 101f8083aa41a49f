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

package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/audit"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/metrics"
	"github.com/jeremyhahn/go-sharelock/pkg/ratelimit"
	"github.com/jeremyhahn/go-sharelock/pkg/scheme"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the REST API server.
type Server struct {
	server    *http.Server
	handlers  *HandlerContext
	tlsConfig *tls.Config
	auth      *apiKeyAuthenticator
	auditor   audit.AuditAdapter
	limiter   *ratelimit.Limiter
	logger    logger.Logger
	metrics   string
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8443)
	Addr string

	// Manager serves every /api route
	Manager *scheme.Manager

	// Version is reported by GET /health
	Version string

	// TLSConfig enables HTTPS when set
	TLSConfig *tls.Config

	// APIKeys maps accepted keys to subjects. Empty disables authentication.
	APIKeys map[string]string

	// RateLimiter limits /api requests per client (optional)
	RateLimiter *ratelimit.Limiter

	// HealthChecker backs the /health probes (optional)
	HealthChecker HealthChecker

	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string

	// Auditor records rejected credentials (optional)
	Auditor audit.AuditAdapter

	// Logger is the logging adapter (optional)
	Logger logger.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("scheme manager is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8443"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	handlers := NewHandlerContext(cfg.Manager, cfg.Version)
	if cfg.HealthChecker != nil {
		handlers.SetHealthChecker(cfg.HealthChecker)
	}

	s := &Server{
		handlers:  handlers,
		tlsConfig: cfg.TLSConfig,
		limiter:   cfg.RateLimiter,
		auditor:   cfg.Auditor,
		logger:    log,
		metrics:   cfg.MetricsPath,
	}
	if s.auditor == nil {
		s.auditor = audit.NewNopAuditAdapter()
	}
	if len(cfg.APIKeys) > 0 {
		s.auth = newAPIKeyAuthenticator(cfg.APIKeys)
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", s.handlers.HealthHandler)
	r.Head("/health", s.handlers.HealthHandler)
	r.Get("/health/live", s.handlers.LivenessHandler)
	r.Get("/health/ready", s.handlers.ReadinessHandler)
	r.Get("/health/startup", s.handlers.StartupHandler)

	if s.metrics != "" {
		r.Handle(s.metrics, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil && s.limiter.IsEnabled() {
			r.Use(ratelimit.Middleware(s.limiter))
		}
		r.Use(s.AuthenticationMiddleware())

		r.Post("/schemes", s.handlers.CreateSchemeHandler)
		r.Get("/schemes", s.handlers.ListSchemesHandler)
		r.Get("/schemes/{id}", s.handlers.GetSchemeHandler)
		r.Delete("/schemes/{id}", s.handlers.DeleteSchemeHandler)
		r.Post("/schemes/{id}/refresh", s.handlers.RefreshSchemeHandler)
		r.Post("/schemes/{id}/verify", s.handlers.VerifySharesHandler)
		r.Get("/schemes/{id}/assets", s.handlers.SchemeAssetsHandler)

		r.Get("/assets/{id}", s.handlers.GetAssetHandler)
		r.Delete("/assets/{id}", s.handlers.UnlinkAssetHandler)
		r.Post("/assets/{id}/encrypt", s.handlers.EncryptAssetHandler)
		r.Post("/assets/{id}/decrypt", s.handlers.DecryptAssetHandler)
	})

	return r
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	var err error
	if s.tlsConfig != nil {
		s.logger.Info("Starting HTTPS server", logger.String("addr", ln.Addr().String()))
		err = s.server.ServeTLS(ln, "", "")
	} else {
		s.logger.Info("Starting HTTP server", logger.String("addr", ln.Addr().String()))
		err = s.server.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
