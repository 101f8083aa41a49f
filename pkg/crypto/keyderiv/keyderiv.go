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

// Package keyderiv turns a recovered scheme secret into a file key in the
// textual form accepted by the file cipher (URL-safe base64 of 32 bytes).
//
// ModeLegacy reproduces the historical derivation: the decimal secret,
// right-padded with '0' or truncated to 32 characters, is used directly as
// key bytes. It keeps existing ciphertexts decryptable but discards entropy
// for secrets longer than 32 digits and pads short ones with a constant.
// ModeHKDF runs the decimal secret through HKDF-SHA256 instead. Files must
// be decrypted in the mode they were encrypted in.
package keyderiv

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jeremyhahn/go-sharelock/pkg/adapters/kdf"
)

// Mode selects the derivation
type Mode string

const (
	// ModeLegacy pads or truncates the decimal secret to KeySize bytes
	ModeLegacy Mode = "legacy"

	// ModeHKDF expands the decimal secret with HKDF-SHA256
	ModeHKDF Mode = "hkdf"
)

const (
	// KeySize is the raw key length in bytes
	KeySize = 32

	// filler pads short decimal secrets in ModeLegacy
	filler = "0"
)

// hkdfInfo binds HKDF output to file encryption
var hkdfInfo = []byte("go-sharelock file key v1")

var (
	// ErrInvalidSecret indicates a nil or negative secret
	ErrInvalidSecret = errors.New("keyderiv: invalid secret")

	// ErrUnsupportedMode indicates an unknown derivation mode
	ErrUnsupportedMode = errors.New("keyderiv: unsupported mode")
)

// ParseMode converts a configuration string to a Mode. The empty string
// selects ModeLegacy.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLegacy:
		return ModeLegacy, nil
	case ModeHKDF:
		return ModeHKDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// Derive returns the file key for secret in the given mode. The result is
// a URL-safe base64 string of KeySize bytes. Equal secrets always give
// equal keys.
func Derive(secret *big.Int, mode Mode) (string, error) {
	raw, err := DeriveBytes(secret, mode)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DeriveBytes is Derive without the final base64 encoding.
func DeriveBytes(secret *big.Int, mode Mode) ([]byte, error) {
	if secret == nil || secret.Sign() < 0 {
		return nil, ErrInvalidSecret
	}
	decimal := secret.Text(10)

	switch mode {
	case ModeLegacy, "":
		return legacyKey(decimal), nil
	case ModeHKDF:
		params := kdf.DefaultParams(kdf.AlgorithmHKDFSHA256)
		params.Info = hkdfInfo
		params.KeyLength = KeySize
		return kdf.Derive([]byte(decimal), params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}

func legacyKey(decimal string) []byte {
	if len(decimal) >= KeySize {
		return []byte(decimal[:KeySize])
	}
	return []byte(decimal + strings.Repeat(filler, KeySize-len(decimal)))
}
