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

package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremyhahn/go-sharelock/internal/testutil"
)

func writeServerCert(t *testing.T) (dir, certFile, keyFile, caFile string) {
	t.Helper()
	ca, err := testutil.GenerateTestCA()
	if err != nil {
		t.Fatalf("Failed to generate CA: %v", err)
	}
	serverCert, err := testutil.GenerateTestServerCert(ca, "localhost")
	if err != nil {
		t.Fatalf("Failed to generate server cert: %v", err)
	}

	dir = t.TempDir()
	certFile, keyFile, err = serverCert.WriteFiles(dir, "server")
	if err != nil {
		t.Fatalf("Failed to write server cert: %v", err)
	}
	caFile, _, err = ca.WriteFiles(dir, "ca")
	if err != nil {
		t.Fatalf("Failed to write CA: %v", err)
	}
	return dir, certFile, keyFile, caFile
}

func TestLoadTLSConfig_Disabled(t *testing.T) {
	cfg := &TLSConfig{Enabled: false}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if tlsConfig != nil {
		t.Errorf("LoadTLSConfig() = %v, want nil for disabled TLS", tlsConfig)
	}
}

func TestLoadTLSConfig_ValidConfig(t *testing.T) {
	_, certFile, keyFile, _ := writeServerCert(t)

	cfg := &TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}
	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Errorf("len(Certificates) = %v, want 1", len(tlsConfig.Certificates))
	}
	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %v, want TLS 1.2", tlsConfig.MinVersion)
	}
	if tlsConfig.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v, want NoClientCert", tlsConfig.ClientAuth)
	}
}

func TestLoadTLSConfig_MissingFiles(t *testing.T) {
	dir, certFile, keyFile, _ := writeServerCert(t)
	missing := filepath.Join(dir, "missing.pem")

	for _, cfg := range []*TLSConfig{
		{Enabled: true, CertFile: missing, KeyFile: keyFile},
		{Enabled: true, CertFile: certFile, KeyFile: missing},
	} {
		if _, err := cfg.LoadTLSConfig(); err == nil {
			t.Errorf("LoadTLSConfig(%+v) error = nil, want error", cfg)
		}
	}
}

func TestLoadTLSConfig_MutualTLS(t *testing.T) {
	_, certFile, keyFile, caFile := writeServerCert(t)

	cfg := &TLSConfig{
		Enabled:    true,
		CertFile:   certFile,
		KeyFile:    keyFile,
		CAFile:     caFile,
		ClientAuth: "require_and_verify",
		MinVersion: "TLS1.3",
	}
	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v", err)
	}
	if tlsConfig.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", tlsConfig.ClientAuth)
	}
	if tlsConfig.ClientCAs == nil {
		t.Error("ClientCAs not loaded")
	}
	if tlsConfig.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %v, want TLS 1.3", tlsConfig.MinVersion)
	}
}

func TestLoadTLSConfig_InvalidSettings(t *testing.T) {
	dir, certFile, keyFile, _ := writeServerCert(t)

	badCA := filepath.Join(dir, "bad-ca.pem")
	if err := os.WriteFile(badCA, []byte("not a certificate"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"unknown client auth", TLSConfig{ClientAuth: "sometimes"}},
		{"unsupported version", TLSConfig{MinVersion: "TLS1.0"}},
		{"missing CA file", TLSConfig{CAFile: filepath.Join(dir, "nope.pem")}},
		{"invalid CA content", TLSConfig{CAFile: badCA}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Enabled = true
			cfg.CertFile = certFile
			cfg.KeyFile = keyFile
			if _, err := cfg.LoadTLSConfig(); err == nil {
				t.Error("LoadTLSConfig() error = nil, want error")
			}
		})
	}
}

func TestParseClientAuthType(t *testing.T) {
	tests := map[string]tls.ClientAuthType{
		"":                   tls.NoClientCert,
		"none":               tls.NoClientCert,
		"request":            tls.RequestClientCert,
		"require":            tls.RequireAnyClientCert,
		"verify":             tls.VerifyClientCertIfGiven,
		"require_and_verify": tls.RequireAndVerifyClientCert,
	}
	for input, want := range tests {
		got, err := parseClientAuthType(input)
		if err != nil {
			t.Errorf("parseClientAuthType(%q) error = %v", input, err)
		}
		if got != want {
			t.Errorf("parseClientAuthType(%q) = %v, want %v", input, got, want)
		}
	}
}
