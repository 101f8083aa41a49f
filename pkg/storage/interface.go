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

// Package storage defines the key-value persistence layer for scheme
// records and asset links. Implementations live in the memory, file and
// badger subpackages and share the Backend interface.
//
// Keys are slash-separated relative paths built by SchemePath and
// AssetPath. Values are opaque bytes; the scheme package stores JSON.
package storage

import (
	"io/fs"
)

// Backend is a thread-safe key-value store.
type Backend interface {
	// Get returns a copy of the value, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put writes value under key, replacing any previous value.
	Put(key string, value []byte, opts *Options) error

	// Create writes value under key only if the key is absent, returning
	// ErrAlreadyExists otherwise. The check and the write are one step,
	// so two concurrent creators of the same key cannot both succeed.
	Create(key string, value []byte, opts *Options) error

	// Delete removes key, or returns ErrNotFound.
	Delete(key string) error

	// List returns the keys starting with prefix in ascending order. An
	// empty prefix lists everything.
	List(prefix string) ([]string, error)

	Exists(key string) (bool, error)

	// Close releases the backend. Later calls fail with ErrClosed.
	Close() error
}

// RecordPerms is the mode of persisted records. Scheme records carry the
// commitment, so they are owner-only.
const RecordPerms fs.FileMode = 0600

// Options tunes a single write. Backends without a notion of file modes
// ignore it.
type Options struct {
	Permissions fs.FileMode
}

// DefaultOptions returns Options for a scheme or asset record.
func DefaultOptions() *Options {
	return &Options{Permissions: RecordPerms}
}

// PermissionsOr returns the permissions carried by opts, or def when opts
// is nil or leaves them unset.
func (o *Options) PermissionsOr(def fs.FileMode) fs.FileMode {
	if o == nil || o.Permissions == 0 {
		return def
	}
	return o.Permissions
}
