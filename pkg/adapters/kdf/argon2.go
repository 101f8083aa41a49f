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

package kdf

import (
	"golang.org/x/crypto/argon2"
)

const (
	// Argon2Version is the algorithm version written into encoded hashes
	Argon2Version = argon2.Version

	// MinArgon2SaltLength is the shortest salt accepted, in bytes
	MinArgon2SaltLength = 16

	// MinArgon2Memory is the minimum memory cost in KiB
	MinArgon2Memory = 8 * 1024 // 8 MiB

	// MinArgon2Time is the minimum time cost
	MinArgon2Time = 1

	// MinArgon2Threads is the minimum number of threads
	MinArgon2Threads = 1
)

// Argon2Adapter implements Adapter with Argon2id
type Argon2Adapter struct{}

// NewArgon2idAdapter creates a new Argon2id adapter
func NewArgon2idAdapter() *Argon2Adapter {
	return &Argon2Adapter{}
}

// DeriveKey derives a key using Argon2id
func (a *Argon2Adapter) DeriveKey(ikm []byte, params *Params) ([]byte, error) {
	if err := a.ValidateParams(params); err != nil {
		return nil, err
	}

	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	return argon2.IDKey(
		ikm,
		params.Salt,
		params.Time,
		params.Memory,
		params.Threads,
		uint32(params.KeyLength),
	), nil
}

// Algorithm returns the KDF algorithm
func (a *Argon2Adapter) Algorithm() Algorithm {
	return AlgorithmArgon2id
}

// ValidateParams validates Argon2 parameters
func (a *Argon2Adapter) ValidateParams(params *Params) error {
	if params == nil {
		return ErrInvalidParams
	}

	if params.Algorithm != AlgorithmArgon2id {
		return ErrUnsupportedAlgorithm
	}

	if params.KeyLength <= 0 {
		return ErrInvalidKeyLength
	}

	if len(params.Salt) < MinArgon2SaltLength {
		return ErrInvalidSalt
	}

	if params.Memory < MinArgon2Memory {
		return ErrInvalidMemory
	}

	if params.Time < MinArgon2Time {
		return ErrInvalidTime
	}

	if params.Threads < MinArgon2Threads {
		return ErrInvalidThreads
	}

	return nil
}
