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

package storage

import "errors"

// Sentinel errors shared by every backend. Backends wrap them with the key
// involved; callers match with errors.Is.
var (
	ErrClosed        = errors.New("storage: backend closed")
	ErrNotFound      = errors.New("storage: key not found")
	ErrAlreadyExists = errors.New("storage: key already exists")
	ErrInvalidKey    = errors.New("storage: invalid key")
	ErrInvalidData   = errors.New("storage: corrupt record")

	// ErrInvalidID rejects scheme or asset IDs that cannot be mapped onto
	// a key, such as path separators or dot segments.
	ErrInvalidID = errors.New("storage: invalid record id")
)

// IsConflict reports whether err means a Create lost against an existing key.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
