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

package rand

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrDeviceClosed is returned after Close
var ErrDeviceClosed = errors.New("rng device closed")

// deviceResolver reads from an entropy character device.
type deviceResolver struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

var _ Resolver = (*deviceResolver)(nil)

func newDeviceResolver(path string) (*deviceResolver, error) {
	if path == "" {
		path = DefaultDevice
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rng device %s: %w", path, err)
	}
	return &deviceResolver{path: path, f: f}, nil
}

func (d *deviceResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := d.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read fills p completely or returns an error.
func (d *deviceResolver) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return 0, ErrDeviceClosed
	}
	n, err := io.ReadFull(d.f, p)
	if err != nil {
		return n, fmt.Errorf("failed to read rng device %s: %w", d.path, err)
	}
	return n, nil
}

func (d *deviceResolver) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f != nil
}

func (d *deviceResolver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// fallbackResolver retries failed reads on a secondary source.
type fallbackResolver struct {
	primary  Resolver
	fallback Resolver
}

var _ Resolver = (*fallbackResolver)(nil)

func (f *fallbackResolver) Rand(n int) ([]byte, error) {
	result, err := f.primary.Rand(n)
	if err != nil {
		result, err = f.fallback.Rand(n)
	}
	return result, err
}

func (f *fallbackResolver) Read(p []byte) (int, error) {
	n, err := f.primary.Read(p)
	if err != nil {
		return f.fallback.Read(p)
	}
	return n, nil
}

func (f *fallbackResolver) Available() bool {
	return f.primary.Available() || f.fallback.Available()
}

func (f *fallbackResolver) Close() error {
	_ = f.primary.Close()
	_ = f.fallback.Close()
	return nil
}
