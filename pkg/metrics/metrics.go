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

// Package metrics provides Prometheus instrumentation for go-sharelock.
// It exposes operation counters, latency histograms, error counters, scheme
// gauges and HTTP request metrics.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all sharelock metrics
	Namespace = "sharelock"

	// Label names
	LabelOperation  = "operation"
	LabelField      = "field"
	LabelStatus     = "status"
	LabelErrorType  = "error_type"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"
	LabelReason     = "reason"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpGenerate = "generate"
	OpVerify   = "verify"
	OpRecover  = "recover"
	OpEncrypt  = "encrypt"
	OpDecrypt  = "decrypt"
	OpRefresh  = "refresh"
	OpDelete   = "delete"

	// Rate limiter outcomes
	RateLimitExceeded = "exceeded"
	RateLimitPenalty  = "penalty"
)

var (
	// OperationsTotal tracks sharelock operations by type, field exponent and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of sharelock operations by type, field and status",
		},
		[]string{LabelOperation, LabelField, LabelStatus},
	)

	// OperationDuration tracks the duration of sharelock operations in seconds.
	// Commitment hashing dominates; buckets reach into whole seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of sharelock operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation},
	)

	// ErrorsTotal tracks errors by operation and error type
	// (e.g. "commitment_mismatch", "malformed_share", "authentication_failure").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// SchemesTotal is the number of stored schemes.
	SchemesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "schemes_total",
			Help:      "Number of stored sharing schemes",
		},
	)

	// EncryptedAssetsTotal is the number of assets currently linked to a scheme.
	EncryptedAssetsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "encrypted_assets_total",
			Help:      "Number of assets currently encrypted under a scheme",
		},
	)

	// ActiveRequests tracks in-flight HTTP requests.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// HTTPRequestsTotal tracks HTTP requests by method, route pattern and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// RateLimitedTotal counts requests refused by the rate limiter and
	// penalties charged for rejected share sets.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of rate limiter refusals and share rejection penalties",
		},
		[]string{LabelReason},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a sharelock operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	commitment, shares, err := engine.GenerateScheme(3, 5, 127)
//	status := metrics.StatusSuccess
//	if err != nil {
//	    status = metrics.StatusError
//	}
//	metrics.RecordOperation(metrics.OpGenerate, "127", status, time.Since(start).Seconds())
func RecordOperation(operation, field, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, field, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordError records an error event for an operation.
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, route, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RecordRateLimited records a rate limiter event, RateLimitExceeded or
// RateLimitPenalty.
func RecordRateLimited(reason string) {
	if !enabled.Load() {
		return
	}
	RateLimitedTotal.WithLabelValues(reason).Inc()
}

// SetSchemesTotal sets the stored scheme gauge.
func SetSchemesTotal(count int) {
	if !enabled.Load() {
		return
	}
	SchemesTotal.Set(float64(count))
}

// SetEncryptedAssetsTotal sets the linked asset gauge.
func SetEncryptedAssetsTotal(count int) {
	if !enabled.Load() {
		return
	}
	EncryptedAssetsTotal.Set(float64(count))
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
