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

// Package rand provides the randomness source used to draw polynomial
// coefficients and commitment salts.
//
// A Resolver is an io.Reader, so it can be passed anywhere crypto/rand.Reader
// is accepted:
//
//	rng, _ := rand.NewResolver(rand.ModeSoftware)
//	secret, shares, err := shamir.Split(rng, 3, 5, p)
//
// ModeDevice reads from an entropy device such as /dev/hwrng and can fall
// back to the software source when the device fails.
//
// All Resolver implementations are safe for concurrent use.
package rand

import (
	"crypto/rand"
	"fmt"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto uses the configured device when it is readable and the
	// software source otherwise
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand (stdlib secure random)
	ModeSoftware Mode = "software"

	// ModeDevice reads from an entropy character device
	ModeDevice Mode = "device"
)

// DefaultDevice is the Linux hardware RNG device
const DefaultDevice = "/dev/hwrng"

// Config contains RNG configuration.
type Config struct {
	// Mode specifies the primary RNG source to use.
	// Defaults to ModeSoftware if not specified.
	Mode Mode

	// FallbackMode specifies the RNG source to use if the primary fails.
	// If not specified, failures are returned as errors.
	FallbackMode Mode

	// Device is the entropy device path for ModeDevice and ModeAuto
	Device string
}

// Resolver provides random bytes. Applications should create a Resolver
// at startup and reuse it.
type Resolver interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader.
	Read(p []byte) (n int, err error)

	// Available returns true if the source is ready.
	Available() bool

	// Close releases any resources.
	Close() error
}

// NewResolver creates a resolver from a Mode or a *Config. A nil config
// selects ModeSoftware.
func NewResolver(config interface{}) (Resolver, error) {
	cfg := normalizeConfig(config)
	return newResolver(cfg)
}

func normalizeConfig(config interface{}) *Config {
	switch v := config.(type) {
	case Mode:
		return &Config{Mode: v}
	case *Config:
		if v == nil {
			return &Config{Mode: ModeSoftware}
		}
		c := *v
		if c.Mode == "" {
			c.Mode = ModeSoftware
		}
		return &c
	default:
		return &Config{Mode: ModeSoftware}
	}
}

func newResolver(cfg *Config) (Resolver, error) {
	var (
		primary Resolver
		err     error
	)
	switch cfg.Mode {
	case ModeSoftware:
		primary = &SoftwareResolver{}
	case ModeDevice:
		primary, err = newDeviceResolver(cfg.Device)
		if err != nil {
			return nil, err
		}
	case ModeAuto:
		if dev, devErr := newDeviceResolver(cfg.Device); devErr == nil && dev.Available() {
			primary = dev
		} else {
			primary = &SoftwareResolver{}
		}
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", cfg.Mode)
	}

	if cfg.FallbackMode == "" || cfg.FallbackMode == cfg.Mode {
		return primary, nil
	}
	fallback, err := newResolver(&Config{Mode: cfg.FallbackMode, Device: cfg.Device})
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return &fallbackResolver{primary: primary, fallback: fallback}, nil
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

// Read implements io.Reader for compatibility with crypto/rand.Reader.
func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Available() bool {
	return true // crypto/rand always available
}

func (s *SoftwareResolver) Close() error {
	return nil
}
