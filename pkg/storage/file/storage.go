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

// Package file provides a file-based implementation of the storage.Backend
// interface on top of an afero filesystem. Each key maps to one file below
// the root directory; writes go to a temporary file that is renamed into
// place.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-sharelock/pkg/storage"
	"github.com/spf13/afero"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	// Default file permissions (owner rw only)
	defaultPerms = 0600

	tempPattern = ".tmp-*"
)

// FileStorage is a file-based implementation of storage.Backend.
// It stores key-value pairs as files in a directory hierarchy and is thread-safe.
type FileStorage struct {
	mu      sync.RWMutex
	fs      afero.Fs
	rootDir string
	closed  bool
}

// New creates a FileStorage rooted at rootDir on fsys. A nil fsys uses the
// OS filesystem. The root directory is created with 0700 permissions if it
// doesn't exist.
func New(fsys afero.Fs, rootDir string) (*FileStorage, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	if err := fsys.MkdirAll(rootDir, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}

	return &FileStorage{
		fs:      fsys,
		rootDir: filepath.Clean(rootDir),
	}, nil
}

// Get retrieves the value for the given key.
// Returns storage.ErrNotFound if the key does not exist.
func (f *FileStorage) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, storage.ErrClosed
	}
	filePath, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(f.fs, filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read key %q: %w", key, err)
	}
	return data, nil
}

// Put stores the value for the given key, replacing any previous value
// atomically. Permissions come from opts when set, 0600 otherwise.
func (f *FileStorage) Put(key string, value []byte, opts *storage.Options) error {
	return f.write(key, value, opts, f.writeAtomic)
}

// Create writes a new file with O_EXCL, so it fails with
// storage.ErrAlreadyExists even when another process sharing the root
// created the key first. Unlike Put the content is written in place.
func (f *FileStorage) Create(key string, value []byte, opts *storage.Options) error {
	return f.write(key, value, opts, f.writeExclusive)
}

type writeFunc func(dir, filePath string, value []byte, perms fs.FileMode) error

func (f *FileStorage) write(key string, value []byte, opts *storage.Options, fn writeFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return storage.ErrClosed
	}
	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := f.fs.MkdirAll(dir, defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for key %q: %w", key, err)
	}

	if err := fn(dir, filePath, value, opts.PermissionsOr(defaultPerms)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("file storage: %q: %w", key, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	return nil
}

func (f *FileStorage) writeExclusive(_, filePath string, value []byte, perms fs.FileMode) error {
	file, err := f.fs.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perms)
	if err != nil {
		return err
	}
	_, err = file.Write(value)
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = f.fs.Remove(filePath)
	}
	return err
}

func (f *FileStorage) writeAtomic(dir, filePath string, value []byte, perms fs.FileMode) error {
	tmp, err := afero.TempFile(f.fs, dir, tempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(value)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = f.fs.Chmod(tmpName, perms)
	}
	if err == nil {
		err = f.fs.Rename(tmpName, filePath)
	}
	if err != nil {
		_ = f.fs.Remove(tmpName)
	}
	return err
}

// Delete removes the key and its value from storage.
// Returns storage.ErrNotFound if the key does not exist.
func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return storage.ErrClosed
	}
	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	if _, err := f.fs.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to stat key %q: %w", key, err)
	}

	if err := f.fs.Remove(filePath); err != nil {
		return fmt.Errorf("file storage: failed to delete key %q: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix in sorted order. Keys always
// use forward slashes regardless of the host separator.
func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, storage.ErrClosed
	}

	keys := make([]string, 0)
	err := afero.Walk(f.fs, f.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || isTempFile(info.Name()) {
			return nil
		}

		key, err := f.pathToKey(path)
		if err != nil {
			return err
		}
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (f *FileStorage) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return false, storage.ErrClosed
	}
	filePath, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}

	if _, err := f.fs.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to check key %q: %w", key, err)
	}
	return true, nil
}

// Close marks the storage closed. Files on disk are left untouched.
func (f *FileStorage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

// keyToPath converts a storage key to a file path below the root.
func (f *FileStorage) keyToPath(key string) (string, error) {
	if err := validateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidKey, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

// validateStorageKey allows path separators for organization but blocks
// traversal out of the root.
func validateStorageKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return fmt.Errorf("key cannot be an absolute path")
	}

	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		if part == ".." {
			return fmt.Errorf("key contains path traversal attempt")
		}
		if isTempFile(part) {
			return fmt.Errorf("key collides with temporary file names")
		}
	}
	return nil
}

// pathToKey converts a file path to a storage key.
func (f *FileStorage) pathToKey(path string) (string, error) {
	rel, err := filepath.Rel(f.rootDir, path)
	if err != nil {
		return "", fmt.Errorf("file storage: failed to convert path to key: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".tmp-")
}
