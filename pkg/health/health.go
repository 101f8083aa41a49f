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

// Package health implements liveness, readiness and startup probes for the
// sharelock daemon.
//
// Liveness only reports that the process is serving. Readiness runs every
// registered check concurrently, each bounded by the checker's timeout.
// Startup fails until MarkStarted is called.
package health

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/storage"
	"github.com/spf13/afero"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component works with reduced capacity.
	StatusDegraded Status = "degraded"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 5 * time.Second

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckFunc performs a single readiness check. It should honor ctx.
type CheckFunc func(ctx context.Context) CheckResult

// Option configures a Checker.
type Option func(*Checker)

// WithCheckTimeout overrides DefaultCheckTimeout. Non-positive values are
// ignored.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Checker holds the registered readiness checks and the startup state.
type Checker struct {
	mu        sync.RWMutex
	started   bool
	startTime time.Time
	timeout   time.Duration
	checks    map[string]CheckFunc
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCheck adds or replaces the check with the given name. Nil checks
// are ignored.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

func (c *Checker) MarkStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
}

// MarkNotStarted clears the started flag, used during shutdown.
func (c *Checker) MarkNotStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
}

func (c *Checker) IsStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

func (c *Checker) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}

// Checks returns the sorted names of all registered checks.
func (c *Checker) Checks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Checker) Live(context.Context) CheckResult {
	return CheckResult{Name: "liveness", Status: StatusHealthy, Message: "Service is alive"}
}

// Ready runs every registered check and returns the results sorted by
// name. A check still running at the timeout is reported unhealthy; its
// goroutine is left to finish against a cancelled context. With no checks
// registered a single healthy "default" result is returned.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		names = append(names, name)
		checks[name] = check
	}
	timeout := c.timeout
	c.mu.RUnlock()

	if len(names) == 0 {
		return []CheckResult{{Name: "default", Status: StatusHealthy, Message: "No readiness checks configured"}}
	}
	slices.Sort(names)

	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, name, checks[name], timeout)
		}()
	}
	wg.Wait()
	return results
}

func runCheck(ctx context.Context, name string, check CheckFunc, timeout time.Duration) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() { done <- check(ctx) }()

	var result CheckResult
	select {
	case result = <-done:
	case <-ctx.Done():
		result = CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("Check did not finish within %s", timeout),
			Error:   ctx.Err().Error(),
		}
	}
	result.Latency = time.Since(start)
	if result.Name == "" {
		result.Name = name
	}
	return result
}

// Startup fails until MarkStarted has been called.
func (c *Checker) Startup(context.Context) CheckResult {
	c.mu.RLock()
	started := c.started
	startTime := c.startTime
	c.mu.RUnlock()

	if !started {
		return CheckResult{Name: "startup", Status: StatusUnhealthy, Message: "Service initialization not complete"}
	}
	return CheckResult{
		Name:    "startup",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("Service fully initialized (uptime: %s)", time.Since(startTime).Round(time.Second)),
	}
}

// AggregateStatus folds results into one status: unhealthy wins over
// degraded, which wins over healthy.
func AggregateStatus(results []CheckResult) Status {
	status := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// StorageCheck reports whether the record store answers a scheme listing.
func StorageCheck(backend storage.Backend) CheckFunc {
	return func(ctx context.Context) CheckResult {
		ids, err := storage.ListSchemes(backend)
		if err != nil {
			return CheckResult{Name: "storage", Status: StatusUnhealthy, Message: "Record store unavailable", Error: err.Error()}
		}
		return CheckResult{Name: "storage", Status: StatusHealthy, Message: fmt.Sprintf("%d schemes", len(ids))}
	}
}

// FilesCheck reports whether the asset root exists and is a directory.
// A missing root is degraded rather than unhealthy since file operations
// with absolute paths still work.
func FilesCheck(fsys afero.Fs, root string) CheckFunc {
	return func(ctx context.Context) CheckResult {
		info, err := fsys.Stat(root)
		switch {
		case err != nil:
			return CheckResult{Name: "files", Status: StatusDegraded, Message: "Asset root not accessible", Error: err.Error()}
		case !info.IsDir():
			return CheckResult{Name: "files", Status: StatusUnhealthy, Message: fmt.Sprintf("%s is not a directory", root)}
		}
		return CheckResult{Name: "files", Status: StatusHealthy}
	}
}

// DanglingFunc lists linked assets whose encrypted file is gone.
type DanglingFunc func(ctx context.Context) ([]string, error)

// maxListed caps the asset IDs named in a degraded message.
const maxListed = 5

// AssetsCheck degrades readiness while asset links point at missing
// ciphertext. Those links can only be cleared with an unlink; the service
// itself keeps working.
func AssetsCheck(dangling DanglingFunc) CheckFunc {
	return func(ctx context.Context) CheckResult {
		ids, err := dangling(ctx)
		switch {
		case err != nil:
			return CheckResult{Name: "assets", Status: StatusUnhealthy, Message: "Asset links unreadable", Error: err.Error()}
		case len(ids) == 0:
			return CheckResult{Name: "assets", Status: StatusHealthy}
		}

		shown := ids[:min(len(ids), maxListed)]
		msg := fmt.Sprintf("%d asset(s) missing encrypted file: %s", len(ids), strings.Join(shown, ", "))
		if len(ids) > maxListed {
			msg += ", ..."
		}
		return CheckResult{Name: "assets", Status: StatusDegraded, Message: msg}
	}
}
