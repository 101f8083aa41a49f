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

package scheme

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/storage"
)

// MaxNameLength bounds a scheme's display name.
const MaxNameLength = 200

// Record is the persisted form of a sharing scheme. It never carries the
// secret or any share.
type Record struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FieldExponent int       `json:"field_exponent"`
	K             int       `json:"k"`
	N             int       `json:"n"`
	Commitment    string    `json:"commitment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Difference is the number of shares that may be lost without losing the
// secret.
func (r *Record) Difference() int {
	return r.N - r.K
}

// Asset links an encrypted file to the scheme that protects it.
type Asset struct {
	ID          string    `json:"id"`
	SchemeID    string    `json:"scheme_id"`
	Path        string    `json:"path"`
	EncryptedAt time.Time `json:"encrypted_at"`
}

func loadJSON(store storage.Backend, key string, v interface{}) error {
	data, err := store.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrInvalidData, key, err)
	}
	return nil
}

func saveJSON(store storage.Backend, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(key, data, storage.DefaultOptions())
}

// createJSON is saveJSON for keys that must not exist yet.
func createJSON(store storage.Backend, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Create(key, data, storage.DefaultOptions())
}
