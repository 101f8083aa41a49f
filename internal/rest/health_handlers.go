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

	"github.com/jeremyhahn/go-sharelock/pkg/health"
)

// probeStatus answers 503 only for unhealthy; degraded still serves.
func probeStatus(status health.Status) int {
	if status == health.StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// LivenessHandler handles GET /health/live requests.
func (h *HandlerContext) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if h.HealthChecker == nil {
		writeJSON(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service is alive"}, http.StatusOK)
		return
	}
	result := h.HealthChecker.Live(r.Context())
	writeJSON(w, HealthCheckResponse{Status: result.Status, Message: result.Message}, probeStatus(result.Status))
}

// ReadinessHandler handles GET /health/ready requests.
func (h *HandlerContext) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.HealthChecker == nil {
		writeJSON(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service is ready"}, http.StatusOK)
		return
	}

	results := h.HealthChecker.Ready(r.Context())
	resp := HealthCheckResponse{
		Status: health.AggregateStatus(results),
		Checks: results,
	}
	switch resp.Status {
	case health.StatusHealthy:
		resp.Message = "All checks passed"
	case health.StatusDegraded:
		resp.Message = "Service is degraded"
	case health.StatusUnhealthy:
		resp.Message = "One or more checks failed"
	}
	writeJSON(w, resp, probeStatus(resp.Status))
}

// StartupHandler handles GET /health/startup requests.
func (h *HandlerContext) StartupHandler(w http.ResponseWriter, r *http.Request) {
	if h.HealthChecker == nil {
		writeJSON(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service has started"}, http.StatusOK)
		return
	}
	result := h.HealthChecker.Startup(r.Context())
	writeJSON(w, HealthCheckResponse{Status: result.Status, Message: result.Message}, probeStatus(result.Status))
}
