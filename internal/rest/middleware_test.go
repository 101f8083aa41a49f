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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeremyhahn/go-sharelock/pkg/adapters/audit"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/correlation"
)

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("Expected first status to stick, got %d / %d", rw.statusCode, rec.Code)
	}

	rec = httptest.NewRecorder()
	rw = newResponseWriter(rec)
	if _, err := rw.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if !rw.written || rw.statusCode != http.StatusOK {
		t.Error("Write should imply 200")
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	s := &Server{logger: logger.NewNopLogger()}

	var seen string
	handler := s.CorrelationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = correlation.GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlation.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "req-123" || rec.Header().Get(correlation.CorrelationIDHeader) != "req-123" {
		t.Errorf("Expected client ID to propagate, got %q", seen)
	}

	// Unsafe IDs are replaced
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlation.CorrelationIDHeader, "bad id\nforged=1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen == "" || seen == "bad id\nforged=1" {
		t.Errorf("Expected generated ID, got %q", seen)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s := &Server{logger: logger.NewNopLogger()}
	handler := s.RecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
}

func TestAuthenticationMiddleware(t *testing.T) {
	auditor := audit.NewMemoryAuditAdapter(10)
	s := &Server{
		logger:  logger.NewNopLogger(),
		auth:    newAPIKeyAuthenticator(map[string]string{"s3cret": "ops"}),
		auditor: auditor,
	}

	var subject string
	handler := s.AuthenticationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = Subject(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong key", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusOK},
		{"api key header", APIKeyHeader, "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusOK && subject != "ops" {
				t.Errorf("Expected subject ops, got %q", subject)
			}
		})
	}

	if auditor.Len() != 2 {
		t.Errorf("Expected 2 audited failures, got %d", auditor.Len())
	}
}

func TestAuthenticationMiddleware_NoAuditor(t *testing.T) {
	s := &Server{
		logger: logger.NewNopLogger(),
		auth:   newAPIKeyAuthenticator(map[string]string{"s3cret": "ops"}),
	}
	handler := s.AuthenticationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestAuthenticationMiddleware_Disabled(t *testing.T) {
	s := &Server{logger: logger.NewNopLogger()}
	called := false
	handler := s.AuthenticationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if Subject(r.Context()) != "anonymous" {
			t.Errorf("Expected anonymous subject")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("Expected handler to run without auth configured")
	}
}
