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
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/adapters/audit"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/correlation"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// CorrelationMiddleware carries the client's X-Correlation-ID or
// X-Request-ID into the request context, or generates one, and echoes it
// in the response.
func (s *Server) CorrelationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := correlation.FromHeaders(r.Header)
			if id == "" {
				id = correlation.NewID()
			}
			r = r.WithContext(correlation.WithCorrelationID(r.Context(), id))
			w.Header().Set(correlation.CorrelationIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs every request at completion.
func (s *Server) LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			log := logger.WithContext(r.Context(), s.logger)
			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", wrapped.statusCode),
				logger.Duration("duration", time.Since(start)),
			}
			if wrapped.statusCode >= http.StatusInternalServerError {
				log.Error("Request completed", fields...)
				return
			}
			log.Info("Request completed", fields...)
		})
	}
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func (s *Server) RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithContext(r.Context(), s.logger).Error("Panic recovered",
						logger.String("method", r.Method),
						logger.String("path", r.URL.Path),
						logger.Any("error", err))
					writeErrorWithMessage(w, ErrInternalError, "An unexpected error occurred", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// AuthenticationMiddleware requires a configured API key. It is a no-op
// when no keys are configured.
func (s *Server) AuthenticationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.auth == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := s.auth.authenticate(r)
			if err != nil {
				logger.WithContext(r.Context(), s.logger).Warn("Authentication failed",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.String("remote_addr", r.RemoteAddr),
					logger.Error(err))
				s.auditAuthFailure(r)
				w.Header().Set("WWW-Authenticate", `Bearer realm="sharelock"`)
				writeErrorWithMessage(w, ErrUnauthorized, "Authentication failed", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), subject)))
		})
	}
}

func (s *Server) auditAuthFailure(r *http.Request) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.LogEvent(r.Context(), &audit.AuditEvent{
		EventType: audit.EventAuthFailure,
		Severity:  audit.SeverityWarn,
		Outcome:   audit.OutcomeDenied,
		Principal: audit.Anonymous,
		Resource:  &audit.Resource{Type: audit.ResourceAPI, ID: r.Method + " " + r.URL.Path},
		Result:    "authentication_failure",
		Metadata:  map[string]interface{}{"remote_addr": r.RemoteAddr},
		RequestID: correlation.GetCorrelationID(r.Context()),
	})
}
