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

// Package kdf provides the key derivation functions used to commit to a
// scheme secret and to turn a recovered secret into file key material.
//
// Every adapter is keyed by the algorithm identifier that prefixes its
// encoded output (for example "pbkdf2_sha256"), so a stored commitment
// names the adapter that can verify it.
package kdf

import (
	"errors"
	"fmt"
)

// Algorithm identifies a key derivation function
type Algorithm string

const (
	// AlgorithmPBKDF2SHA256 is PBKDF2 with HMAC-SHA256 (RFC 8018), the
	// identifier used by Django's default password hasher
	AlgorithmPBKDF2SHA256 Algorithm = "pbkdf2_sha256"

	// AlgorithmArgon2id is the hybrid Argon2 variant (RFC 9106)
	AlgorithmArgon2id Algorithm = "argon2id"

	// AlgorithmHKDFSHA256 is HMAC-based extract-and-expand with SHA-256 (RFC 5869)
	AlgorithmHKDFSHA256 Algorithm = "hkdf_sha256"
)

// String returns the string representation of the algorithm
func (a Algorithm) String() string {
	return string(a)
}

// Params contains parameters for key derivation. Fields not used by an
// algorithm are ignored.
type Params struct {
	// Algorithm selects the adapter
	Algorithm Algorithm

	// Salt is the per-derivation salt (HKDF: optional)
	Salt []byte

	// Info binds the output to an application context (HKDF only)
	Info []byte

	// Iterations is the PBKDF2 round count
	Iterations int

	// Memory is the Argon2 memory cost in KiB
	Memory uint32

	// Time is the Argon2 pass count
	Time uint32

	// Threads is the Argon2 parallelism
	Threads uint8

	// KeyLength is the output length in bytes
	KeyLength int
}

// Adapter derives keys with one algorithm
type Adapter interface {
	// DeriveKey derives KeyLength bytes from the input key material
	DeriveKey(ikm []byte, params *Params) ([]byte, error)

	// Algorithm returns the algorithm this adapter implements
	Algorithm() Algorithm

	// ValidateParams rejects parameters the algorithm cannot use safely
	ValidateParams(params *Params) error
}

var (
	// ErrInvalidParams indicates nil parameters
	ErrInvalidParams = errors.New("kdf: invalid parameters")

	// ErrInvalidSalt indicates the salt is missing or too short
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidIterations indicates the iteration count is invalid
	ErrInvalidIterations = errors.New("kdf: invalid iterations")

	// ErrInvalidMemory indicates the memory cost is invalid
	ErrInvalidMemory = errors.New("kdf: invalid memory cost")

	// ErrInvalidThreads indicates the thread count is invalid
	ErrInvalidThreads = errors.New("kdf: invalid threads")

	// ErrInvalidTime indicates the time cost is invalid
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidIKM indicates empty input key material
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates no adapter exists for the algorithm
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
)

// DefaultParams returns recommended parameters for the algorithm, without
// a salt. Returns nil for unknown algorithms.
func DefaultParams(algorithm Algorithm) *Params {
	switch algorithm {
	case AlgorithmPBKDF2SHA256:
		return &Params{
			Algorithm:  AlgorithmPBKDF2SHA256,
			Iterations: 600000, // OWASP recommendation for PBKDF2-SHA256 (2023)
			KeyLength:  32,
		}
	case AlgorithmArgon2id:
		return &Params{
			Algorithm: AlgorithmArgon2id,
			Memory:    64 * 1024, // 64 MiB
			Time:      3,
			Threads:   4,
			KeyLength: 32,
		}
	case AlgorithmHKDFSHA256:
		return &Params{
			Algorithm: AlgorithmHKDFSHA256,
			KeyLength: 32,
		}
	default:
		return nil
	}
}

// New returns the adapter for algorithm.
func New(algorithm Algorithm) (Adapter, error) {
	switch algorithm {
	case AlgorithmPBKDF2SHA256:
		return NewPBKDF2Adapter(), nil
	case AlgorithmArgon2id:
		return NewArgon2idAdapter(), nil
	case AlgorithmHKDFSHA256:
		return NewHKDFAdapter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// Derive dispatches to the adapter named by params.Algorithm.
func Derive(ikm []byte, params *Params) ([]byte, error) {
	if params == nil {
		return nil, ErrInvalidParams
	}
	adapter, err := New(params.Algorithm)
	if err != nil {
		return nil, err
	}
	return adapter.DeriveKey(ikm, params)
}
