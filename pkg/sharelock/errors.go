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

package sharelock

import (
	"errors"

	"github.com/jeremyhahn/go-sharelock/pkg/crypto/filecipher"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/commitment"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
)

// Sentinels are shared with the packages that raise them so errors.Is
// matches at every layer.
var (
	// ErrInvalidParameters indicates k > n, n > MaxShares, k < 2 or an
	// unsupported field exponent
	ErrInvalidParameters = shamir.ErrInvalidParameters

	// ErrInsufficientShares indicates fewer than k (or fewer than two) shares
	ErrInsufficientShares = shamir.ErrInsufficientShares

	// ErrInvalidShare indicates a share with a bad index, out-of-field value
	// or duplicate index
	ErrInvalidShare = shamir.ErrInvalidShare

	// ErrMalformedShare indicates a share string failed to decode
	ErrMalformedShare = shamir.ErrMalformedShare

	// ErrMalformedCommitment indicates a stored commitment cannot be parsed
	ErrMalformedCommitment = commitment.ErrMalformedCommitment

	// ErrCommitmentMismatch indicates the shares interpolate to a value
	// other than the committed secret
	ErrCommitmentMismatch = errors.New("shares do not match the scheme commitment")

	// ErrFileNotFound indicates the file to encrypt or decrypt does not exist
	ErrFileNotFound = filecipher.ErrFileNotFound

	// ErrAlreadyEncrypted indicates an encrypt of a ".enc" path, or of a
	// file whose ciphertext already exists
	ErrAlreadyEncrypted = filecipher.ErrAlreadyEncrypted

	// ErrNotEncrypted indicates a decrypt of a path without the ".enc"
	// suffix, or of an asset that has no scheme link
	ErrNotEncrypted = filecipher.ErrNotEncrypted

	// ErrAuthenticationFailure indicates the token was tampered with or the
	// key derived from the shares is wrong
	ErrAuthenticationFailure = filecipher.ErrAuthenticationFailure

	// ErrSchemeNotFound indicates no scheme is stored under the given ID
	ErrSchemeNotFound = errors.New("scheme not found")

	// ErrSchemeInUse indicates a refresh or delete of a scheme that still
	// protects at least one asset
	ErrSchemeInUse = errors.New("scheme is in use by encrypted assets")
)

// ErrorType maps an error to a short snake_case label for metrics and
// API responses. Unknown errors are "internal".
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrMalformedShare):
		return "malformed_share"
	case errors.Is(err, ErrInvalidShare):
		return "invalid_share"
	case errors.Is(err, ErrInvalidParameters):
		return "invalid_parameters"
	case errors.Is(err, ErrMalformedCommitment):
		return "malformed_commitment"
	case errors.Is(err, ErrCommitmentMismatch):
		return "commitment_mismatch"
	case errors.Is(err, ErrFileNotFound):
		return "file_not_found"
	case errors.Is(err, ErrAlreadyEncrypted):
		return "already_encrypted"
	case errors.Is(err, ErrNotEncrypted):
		return "not_encrypted"
	case errors.Is(err, ErrAuthenticationFailure):
		return "authentication_failure"
	case errors.Is(err, ErrSchemeNotFound):
		return "scheme_not_found"
	case errors.Is(err, ErrSchemeInUse):
		return "scheme_in_use"
	default:
		return "internal"
	}
}
