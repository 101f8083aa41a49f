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

// Package memory keeps scheme records and asset links in a map. The CLI
// falls back to it when no persistent backend is configured, and most
// package tests run against it.
package memory

import (
	"slices"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-sharelock/pkg/storage"
)

// Storage is a storage.Backend backed by a map. Values are copied on the
// way in and on the way out.
type Storage struct {
	mu   sync.RWMutex
	data map[string][]byte // nil once closed
}

// New returns an empty store.
func New() *Storage {
	return &Storage{data: make(map[string][]byte)}
}

func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, storage.ErrClosed
	}
	value, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(nonNil(value)), nil
}

func (s *Storage) Put(key string, value []byte, _ *storage.Options) error {
	return s.write(key, value, true)
}

// Create stores value only when key is absent.
func (s *Storage) Create(key string, value []byte, _ *storage.Options) error {
	return s.write(key, value, false)
}

func (s *Storage) write(key string, value []byte, overwrite bool) error {
	if key == "" {
		return storage.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return storage.ErrClosed
	}
	if _, ok := s.data[key]; ok && !overwrite {
		return storage.ErrAlreadyExists
	}
	s.data[key] = slices.Clone(nonNil(value))
	return nil
}

func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return storage.ErrClosed
	}
	if _, ok := s.data[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, storage.ErrClosed
	}
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Storage) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return false, storage.ErrClosed
	}
	_, ok := s.data[key]
	return ok, nil
}

// Close drops every record. Closing twice is harmless.
func (s *Storage) Close() error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
