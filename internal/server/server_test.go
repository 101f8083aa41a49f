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
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sharelock/internal/app"
	"github.com/jeremyhahn/go-sharelock/internal/config"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Commitment.Iterations = kdf.MinPBKDF2Iterations
	cfg.Metrics.CollectInterval = time.Second
	cfg.Files.Root = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg, app.WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Storage.Backend = "zookeeper"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Files.Root = ""
	_, err = New(cfg, app.WithLogger(logger.NewNopLogger()))
	assert.ErrorIs(t, err, ErrFilesRootRequired)

	cfg = testConfig(t)
	cfg.TLS = config.TLSConfig{Enabled: true, CertFile: "/nonexistent.pem", KeyFile: "/nonexistent.key"}
	_, err = New(cfg, app.WithLogger(logger.NewNopLogger()))
	assert.Error(t, err)
}

func TestServer_StartServeShutdown(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	base := fmt.Sprintf("http://%s", s.Addr())
	assert.True(t, s.App().Health.IsStarted())

	resp, err := http.Get(base + "/health/startup")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/health/ready")
	require.NoError(t, err)
	var ready struct {
		Status string `json:"status"`
		Checks []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.Equal(t, "healthy", ready.Status)
	require.Len(t, ready.Checks, 3)
	for i, name := range []string{"assets", "files", "storage"} {
		assert.Equal(t, name, ready.Checks[i].Name)
	}

	resp, err = http.Get(base + cfg.Metrics.Path)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown())
	assert.False(t, s.App().Health.IsStarted())
	assert.NoError(t, s.Shutdown())

	_, err = http.Get(base + "/health")
	assert.Error(t, err)
}

func TestServer_AuthAndRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: map[string]string{"secret-key": "ops"}}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMin = 60
	cfg.RateLimit.Burst = 2
	cfg.RateLimit.RejectionPenalty = -1

	s := newTestServer(t, cfg)
	require.NoError(t, s.Start())
	url := fmt.Sprintf("http://%s/api/v1/schemes", s.Addr())

	get := func(key string) int {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		require.NoError(t, err)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, get(""))
	assert.Equal(t, http.StatusOK, get("secret-key"))
	assert.Equal(t, http.StatusTooManyRequests, get("secret-key"))
}

func TestServer_Wait(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, s.Wait(ctx))
}

func TestServer_StartPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	s := newTestServer(t, cfg)
	assert.Error(t, s.Start())
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, Version())
}
