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
	"context"
	"runtime"
	"sync"
	"time"
)

// InventoryFunc counts stored schemes and linked assets. The daemon passes
// one so the gauges follow changes made by other processes sharing the
// store, not only the ones this process performs.
type InventoryFunc func(ctx context.Context) (schemes, assets int, err error)

// CollectorOption configures a ResourceCollector.
type CollectorOption func(*ResourceCollector)

// WithInventory adds scheme and asset counting to every collection.
func WithInventory(fn InventoryFunc) CollectorOption {
	return func(rc *ResourceCollector) { rc.inventory = fn }
}

// ResourceCollector periodically refreshes the process gauges (goroutines,
// heap, uptime) and, with an inventory, the scheme and asset gauges.
type ResourceCollector struct {
	ctx       context.Context
	cancel    context.CancelFunc
	interval  time.Duration
	started   time.Time
	inventory InventoryFunc

	mu      sync.Mutex
	lastErr error
}

// NewResourceCollector creates a collector that runs until ctx is
// cancelled or Stop is called.
//
//	collector := metrics.NewResourceCollector(ctx, 30*time.Second, metrics.WithInventory(mgr.Inventory))
//	go collector.Start()
//	defer collector.Stop()
func NewResourceCollector(ctx context.Context, interval time.Duration, opts ...CollectorOption) *ResourceCollector {
	collectorCtx, cancel := context.WithCancel(ctx)
	rc := &ResourceCollector{
		ctx:      collectorCtx,
		cancel:   cancel,
		interval: interval,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Start blocks, collecting immediately and then on every tick.
func (rc *ResourceCollector) Start() {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.collect()
	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			rc.collect()
		}
	}
}

func (rc *ResourceCollector) Stop() {
	rc.cancel()
}

// Err returns the error of the most recent inventory count, if any. A
// failing count leaves the scheme gauges at their previous values.
func (rc *ResourceCollector) Err() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.lastErr
}

func (rc *ResourceCollector) collect() {
	if !IsEnabled() {
		return
	}
	CollectOnce()
	ServerUptime.Set(time.Since(rc.started).Seconds())

	if rc.inventory == nil {
		return
	}
	schemes, assets, err := rc.inventory(rc.ctx)
	rc.mu.Lock()
	rc.lastErr = err
	rc.mu.Unlock()
	if err != nil {
		return
	}
	SetSchemesTotal(schemes)
	SetEncryptedAssetsTotal(assets)
}

// CollectOnce samples the goroutine and heap gauges.
func CollectOnce() {
	if !IsEnabled() {
		return
	}
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryAllocBytes.Set(float64(memStats.Alloc))
}

// StartResourceCollector creates a collector and runs it in the background.
func StartResourceCollector(ctx context.Context, interval time.Duration, opts ...CollectorOption) *ResourceCollector {
	collector := NewResourceCollector(ctx, interval, opts...)
	go collector.Start()
	return collector
}
