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

// Package ratelimit throttles HTTP clients with per-client token buckets.
// Share verification and file transforms are the guessable endpoints of
// the API, so a response that rejects a share set costs the client extra
// tokens on top of the request itself.
package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultMaxIdle          = 30 * time.Minute
	DefaultRejectionPenalty = 5
)

// Config holds rate limiter configuration.
type Config struct {
	Enabled bool

	// RequestsPerMinute is the sustained refill rate.
	RequestsPerMinute int

	// Burst is the bucket size. Zero means RequestsPerMinute.
	Burst int

	// RejectionPenalty is the number of extra tokens drawn when a response
	// rejects the client's credentials: a bad API key (401), shares that
	// miss the commitment (403) or fail file authentication (422). Zero means
	// DefaultRejectionPenalty, a negative value disables the penalty. The
	// charge may push the bucket into debt, delaying the next request.
	RejectionPenalty int

	// TrustProxyHeaders keys clients by X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites these headers.
	TrustProxyHeaders bool

	// CleanupInterval is how often idle clients are forgotten.
	CleanupInterval time.Duration

	// MaxIdle is how long a client may be silent before it is forgotten.
	MaxIdle time.Duration
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	penalty int
	cfg     Config
	now     func() time.Time

	rejected  uint64
	penalized uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// Stats is a snapshot of limiter state.
type Stats struct {
	Enabled       bool    `json:"enabled"`
	ActiveClients int     `json:"active_clients"`
	RatePerMinute float64 `json:"rate_per_min"`
	Burst         int     `json:"burst"`
	Rejected      uint64  `json:"rejected"`
	Penalized     uint64  `json:"penalized"`
}

// New creates a limiter. A nil config yields a disabled limiter that
// allows everything. An enabled limiter runs a cleanup goroutine until
// Stop is called.
func New(config *Config) *Limiter {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = defaultMaxIdle
	}

	penalty := cfg.RejectionPenalty
	switch {
	case penalty == 0:
		penalty = DefaultRejectionPenalty
	case penalty < 0:
		penalty = 0
	}
	// ReserveN refuses charges larger than the bucket.
	penalty = min(penalty, cfg.Burst)

	l := &Limiter{
		clients: make(map[string]*client),
		penalty: penalty,
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.Enabled {
		go l.cleanupWorker()
	}
	return l
}

func (l *Limiter) limit() rate.Limit {
	return rate.Limit(float64(l.cfg.RequestsPerMinute) / 60)
}

// bucket returns the client's bucket, creating it on first use.
func (l *Limiter) bucket(clientID string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[clientID]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.limit(), l.cfg.Burst)}
		l.clients[clientID] = c
	}
	c.lastSeen = now
	return c.bucket
}

// Allow reports whether a request from clientID is within its limit.
func (l *Limiter) Allow(clientID string) bool {
	ok, _ := l.take(clientID)
	return ok
}

// take spends one token. When the bucket is empty it returns how long the
// client has to wait for the next one.
func (l *Limiter) take(clientID string) (bool, time.Duration) {
	if !l.cfg.Enabled {
		return true, 0
	}
	now := l.now()
	b := l.bucket(clientID, now)
	if b.AllowN(now, 1) {
		return true, 0
	}

	r := b.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)

	l.mu.Lock()
	l.rejected++
	l.mu.Unlock()
	metrics.RecordRateLimited(metrics.RateLimitExceeded)
	return false, wait
}

// Penalize charges clientID for a rejected share set.
func (l *Limiter) Penalize(clientID string) {
	if !l.cfg.Enabled || l.penalty == 0 {
		return
	}
	now := l.now()
	l.bucket(clientID, now).ReserveN(now, l.penalty)

	l.mu.Lock()
	l.penalized++
	l.mu.Unlock()
	metrics.RecordRateLimited(metrics.RateLimitPenalty)
}

func (l *Limiter) cleanupWorker() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup forgets clients idle for longer than MaxIdle.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.MaxIdle)
	for id, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, id)
		}
	}
}

// Stop stops the cleanup worker. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Enabled:       l.cfg.Enabled,
		ActiveClients: len(l.clients),
		RatePerMinute: float64(l.cfg.RequestsPerMinute),
		Burst:         l.cfg.Burst,
		Rejected:      l.rejected,
		Penalized:     l.penalized,
	}
}

func (l *Limiter) IsEnabled() bool {
	return l.cfg.Enabled
}

// Middleware answers 429 once a client exceeds its limit and charges the
// rejection penalty after handlers that refuse the client's key or shares.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := limiter.ClientID(r)
			ok, wait := limiter.take(id)
			if !ok {
				writeLimited(w, wait)
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			if rejectsCredentials(sw.status) {
				limiter.Penalize(id)
			}
		})
	}
}

func rejectsCredentials(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func writeLimited(w http.ResponseWriter, wait time.Duration) {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "rate limit exceeded",
		"type":    "rate_limited",
		"message": "retry after " + strconv.Itoa(secs) + "s",
		"code":    http.StatusTooManyRequests,
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// ClientID identifies the caller of r: the first X-Forwarded-For hop or
// X-Real-IP when proxy headers are trusted, the remote host otherwise.
func (l *Limiter) ClientID(r *http.Request) string {
	if l.cfg.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
