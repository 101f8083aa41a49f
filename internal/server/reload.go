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

package server

import (
	"fmt"

	"github.com/jeremyhahn/go-sharelock/internal/config"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/metrics"
)

// Reload applies the parts of cfg that can change without a restart:
// metrics collection on or off. Listener, storage, TLS and commitment
// changes need a restart and are reported as ignored.
func (s *Server) Reload(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Reloading server configuration...")

	if cfg.Metrics.Enabled != s.config.Metrics.Enabled {
		if cfg.Metrics.Enabled {
			metrics.Enable()
		} else {
			metrics.Disable()
		}
		s.logger.Info("Metrics collection updated", logger.Bool("enabled", cfg.Metrics.Enabled))
	}

	for _, changed := range restartRequired(s.config, cfg) {
		s.logger.Warn("Configuration change requires restart", logger.String("section", changed))
	}

	next := *s.config
	next.Metrics.Enabled = cfg.Metrics.Enabled
	s.config = &next

	s.logger.Info("Server configuration reloaded successfully")
	return nil
}

// restartRequired lists the sections that differ between old and new and
// cannot be applied live.
func restartRequired(old, cfg *config.Config) []string {
	var sections []string
	if old.Server != cfg.Server {
		sections = append(sections, "server")
	}
	if old.TLS != cfg.TLS {
		sections = append(sections, "tls")
	}
	if old.Storage != cfg.Storage {
		sections = append(sections, "storage")
	}
	if old.Commitment != cfg.Commitment {
		sections = append(sections, "commitment")
	}
	if old.Cipher != cfg.Cipher {
		sections = append(sections, "cipher")
	}
	if old.Files != cfg.Files {
		sections = append(sections, "files")
	}
	if old.Logging != cfg.Logging {
		sections = append(sections, "logging")
	}
	if old.Audit != cfg.Audit {
		sections = append(sections, "audit")
	}
	return sections
}
