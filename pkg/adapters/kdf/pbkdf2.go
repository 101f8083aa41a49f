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
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinPBKDF2Iterations is the lowest iteration count accepted
	MinPBKDF2Iterations = 100000

	// MinPBKDF2SaltLength is the shortest salt accepted, in bytes
	MinPBKDF2SaltLength = 8
)

// PBKDF2Adapter implements Adapter with PBKDF2-HMAC-SHA256
type PBKDF2Adapter struct{}

// NewPBKDF2Adapter creates a new PBKDF2 adapter
func NewPBKDF2Adapter() *PBKDF2Adapter {
	return &PBKDF2Adapter{}
}

// DeriveKey derives a key using PBKDF2
func (p *PBKDF2Adapter) DeriveKey(ikm []byte, params *Params) ([]byte, error) {
	if err := p.ValidateParams(params); err != nil {
		return nil, err
	}

	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	return pbkdf2.Key(ikm, params.Salt, params.Iterations, params.KeyLength, sha256.New), nil
}

// Algorithm returns the KDF algorithm
func (p *PBKDF2Adapter) Algorithm() Algorithm {
	return AlgorithmPBKDF2SHA256
}

// ValidateParams validates PBKDF2 parameters
func (p *PBKDF2Adapter) ValidateParams(params *Params) error {
	if params == nil {
		return ErrInvalidParams
	}

	if params.Algorithm != AlgorithmPBKDF2SHA256 {
		return ErrUnsupportedAlgorithm
	}

	if params.KeyLength <= 0 {
		return ErrInvalidKeyLength
	}

	if len(params.Salt) < MinPBKDF2SaltLength {
		return ErrInvalidSalt
	}

	if params.Iterations < MinPBKDF2Iterations {
		return ErrInvalidIterations
	}

	return nil
}
