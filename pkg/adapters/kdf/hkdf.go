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
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFAdapter implements Adapter with HKDF-SHA256. Suitable only for
// high-entropy input such as a recovered field element, never for
// passwords.
type HKDFAdapter struct{}

// NewHKDFAdapter creates a new HKDF adapter
func NewHKDFAdapter() *HKDFAdapter {
	return &HKDFAdapter{}
}

// DeriveKey derives a key using HKDF
func (h *HKDFAdapter) DeriveKey(ikm []byte, params *Params) ([]byte, error) {
	if err := h.ValidateParams(params); err != nil {
		return nil, err
	}

	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	reader := hkdf.New(sha256.New, ikm, params.Salt, params.Info)

	key := make([]byte, params.KeyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}

	return key, nil
}

// Algorithm returns the KDF algorithm
func (h *HKDFAdapter) Algorithm() Algorithm {
	return AlgorithmHKDFSHA256
}

// ValidateParams validates HKDF parameters. Salt and Info are optional.
func (h *HKDFAdapter) ValidateParams(params *Params) error {
	if params == nil {
		return ErrInvalidParams
	}

	if params.Algorithm != AlgorithmHKDFSHA256 {
		return ErrUnsupportedAlgorithm
	}

	if params.KeyLength <= 0 || params.KeyLength > 255*sha256.Size {
		return ErrInvalidKeyLength
	}

	return nil
}
