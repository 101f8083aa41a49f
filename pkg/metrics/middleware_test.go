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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddleware_RoutePattern(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/v1/schemes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/schemes/"+id, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", rec.Code)
		}
	}

	if count := testutil.CollectAndCount(HTTPRequestsTotal); count != 1 {
		t.Errorf("Expected a single series for the route pattern, got %d", count)
	}
	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/schemes/{id}", "404"))
	if got != 3 {
		t.Errorf("Expected 3 requests, got %v", got)
	}
}

func TestHTTPMiddleware_StatusCodes(t *testing.T) {
	Enable()

	testCases := []struct {
		name       string
		statusCode int
		write      bool
	}{
		{"implicit 200", http.StatusOK, true},
		{"201 Created", http.StatusCreated, false},
		{"409 Conflict", http.StatusConflict, false},
		{"500 Internal Server Error", http.StatusInternalServerError, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			HTTPRequestsTotal.Reset()

			handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.write {
					_, _ = w.Write([]byte("ok"))
					return
				}
				w.WriteHeader(tc.statusCode)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))

			if rec.Code != tc.statusCode {
				t.Errorf("Expected %d, got %d", tc.statusCode, rec.Code)
			}
			got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, unmatchedRoute, strconv.Itoa(tc.statusCode)))
			if got != 1 {
				t.Errorf("Expected 1 request recorded, got %v", got)
			}
		})
	}
}

func TestHTTPMiddleware_Disabled(t *testing.T) {
	Disable()
	defer Enable()
	HTTPRequestsTotal.Reset()

	called := false
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("Expected handler to be called")
	}
	if count := testutil.CollectAndCount(HTTPRequestsTotal); count != 0 {
		t.Errorf("Expected no requests recorded, got %d", count)
	}
}
