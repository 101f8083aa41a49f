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

import (
	"strings"
)

const (
	schemePrefix = "schemes/"
	assetPrefix  = "assets/"
	recordSuffix = ".json"
)

// SchemePath returns the storage path for a scheme record.
// The path follows the convention: schemes/{id}.json
func SchemePath(id string) string {
	return schemePrefix + id + recordSuffix
}

// AssetPath returns the storage path for an asset link record.
// The path follows the convention: assets/{id}.json
func AssetPath(id string) string {
	return assetPrefix + id + recordSuffix
}

// ValidateID rejects IDs that would produce an ambiguous or unsafe key.
func ValidateID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\\x00") || id == "." || id == ".." {
		return ErrInvalidID
	}
	return nil
}

// ListSchemes returns the IDs of every stored scheme record.
func ListSchemes(backend Backend) ([]string, error) {
	return listIDs(backend, schemePrefix)
}

// ListAssets returns the IDs of every stored asset link.
func ListAssets(backend Backend) ([]string, error) {
	return listIDs(backend, assetPrefix)
}

func listIDs(backend Backend, prefix string) ([]string, error) {
	keys, err := backend.List(prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, recordSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, prefix), recordSuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
