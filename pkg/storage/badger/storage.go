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

// Package badger provides a storage.Backend on the BadgerDB embedded
// key-value store. Keys are stored verbatim; prefix listing uses a
// key-only iterator.
package badger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/storage"
)

// Config configures a badger-backed store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps the whole database in memory (tests, ephemeral runs).
	InMemory bool

	// SyncWrites fsyncs every committed transaction.
	SyncWrites bool

	// Logger receives badger's internal log lines. Nil discards them.
	Logger logger.Logger
}

// Storage implements storage.Backend on a badger database.
type Storage struct {
	mu     sync.RWMutex
	db     *badger.DB
	closed bool
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Storage, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("badger storage: directory cannot be empty")
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{l: cfg.Logger.With(logger.String("component", "badger"))})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger storage: open: %w", err)
	}
	return &Storage{db: db}, nil
}

// Get retrieves the value for the given key.
func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("badger storage: get %q: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Put stores value under key in a single transaction. Options are ignored.
func (s *Storage) Put(key string, value []byte, _ *storage.Options) error {
	return s.set(key, value, false)
}

// Create stores value only if key is absent. The existence check reads the
// key inside the write transaction, so a concurrent writer of the same key
// makes the commit fail with badger.ErrConflict, reported here as
// storage.ErrAlreadyExists.
func (s *Storage) Create(key string, value []byte, _ *storage.Options) error {
	return s.set(key, value, true)
}

func (s *Storage) set(key string, value []byte, exclusive bool) error {
	if key == "" {
		return storage.ErrInvalidKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	err := s.db.Update(func(txn *badger.Txn) error {
		if exclusive {
			_, err := txn.Get([]byte(key))
			switch {
			case err == nil:
				return storage.ErrAlreadyExists
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
		}
		return txn.Set([]byte(key), valueCopy)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrAlreadyExists), errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("badger storage: %q: %w", key, storage.ErrAlreadyExists)
	default:
		return fmt.Errorf("badger storage: put %q: %w", key, err)
	}
}

// Delete removes the key. Returns storage.ErrNotFound if it does not exist.
func (s *Storage) Delete(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("badger storage: delete %q: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix. Badger iterates in byte
// order, so the result is already sorted.
func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	keys := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.PrefetchValues = false
		iopts.Prefix = []byte(prefix)

		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger storage: list %q: %w", prefix, err)
	}
	return keys, nil
}

// Exists checks if a key exists in storage.
func (s *Storage) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, storage.ErrClosed
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("badger storage: exists %q: %w", key, err)
	}
}

// Close closes the database. Closing twice is safe.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// badgerLogger forwards badger's printf-style logging to a logger.Logger.
type badgerLogger struct {
	l logger.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Info(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
