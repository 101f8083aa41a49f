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

// Package filecipher encrypts and decrypts whole files as Fernet tokens
// (AES-128-CBC with HMAC-SHA256, URL-safe base64 text).
//
// An encrypted file lives next to its source with the Suffix appended.
// Output is written to a temporary file in the same directory and renamed
// into place, so a partially written file is never visible under the
// final name. Sources are never removed here.
package filecipher

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/spf13/afero"
)

// Suffix marks an encrypted file
const Suffix = ".enc"

const (
	defaultFileMode os.FileMode = 0o600
	tempPattern                 = ".sharelock-*"
)

var (
	// ErrFileNotFound indicates the source file does not exist
	ErrFileNotFound = errors.New("file not found")

	// ErrAlreadyEncrypted indicates the file is already encrypted
	ErrAlreadyEncrypted = errors.New("file already encrypted")

	// ErrNotEncrypted indicates the file is not an encrypted file
	ErrNotEncrypted = errors.New("file not encrypted")

	// ErrAuthenticationFailure indicates the token failed verification:
	// wrong key, tampered content or malformed token
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrInvalidKey indicates the key is not 32 bytes of base64
	ErrInvalidKey = errors.New("invalid file key")
)

// Cipher performs file transforms on an afero filesystem
type Cipher struct {
	fs     afero.Fs
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a Cipher
type Option func(*Cipher)

// WithMaxAge rejects tokens older than d on decryption. Zero or negative
// disables the age check, which is the default.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cipher) {
		c.maxAge = d
	}
}

// WithClock sets the time source used to timestamp new tokens
func WithClock(now func() time.Time) Option {
	return func(c *Cipher) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a Cipher over fsys. A nil fsys uses the OS filesystem.
func New(fsys afero.Fs, opts ...Option) *Cipher {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	c := &Cipher{
		fs:  fsys,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fs returns the underlying filesystem
func (c *Cipher) Fs() afero.Fs {
	return c.fs
}

// IsEncrypted reports whether path names an encrypted file
func IsEncrypted(path string) bool {
	return strings.HasSuffix(path, Suffix)
}

// EncryptedPath returns the path an encrypted copy of path is written to
func EncryptedPath(path string) string {
	return path + Suffix
}

// DecryptedPath strips the Suffix from path
func DecryptedPath(path string) string {
	return strings.TrimSuffix(path, Suffix)
}

// Encrypt reads path, encrypts it under key and writes the token to
// path+Suffix, returning the new path.
func (c *Cipher) Encrypt(path, key string) (string, error) {
	if IsEncrypted(path) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyEncrypted, path)
	}
	target := EncryptedPath(path)
	exists, err := afero.Exists(c.fs, target)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if exists {
		return "", fmt.Errorf("%w: %s exists", ErrAlreadyEncrypted, target)
	}

	plaintext, mode, err := c.readFile(path)
	if err != nil {
		return "", err
	}

	token, err := EncryptBytes(plaintext, key, c.now())
	if err != nil {
		return "", err
	}

	if err := c.writeAtomic(target, token, mode); err != nil {
		return "", err
	}
	return target, nil
}

// Decrypt reads the token at path, verifies and decrypts it under key and
// writes the plaintext to the path without Suffix, returning that path.
// A file already at that path is replaced. Encrypt leaves its source in
// place, so a round trip always finds the original there; callers that
// must not clobber a newer plaintext check for it first.
func (c *Cipher) Decrypt(path, key string) (string, error) {
	if !IsEncrypted(path) {
		return "", fmt.Errorf("%w: %s", ErrNotEncrypted, path)
	}

	token, mode, err := c.readFile(path)
	if err != nil {
		return "", err
	}

	plaintext, err := DecryptBytes(token, key, c.maxAge)
	if err != nil {
		return "", err
	}

	target := DecryptedPath(path)
	if err := c.writeAtomic(target, plaintext, mode); err != nil {
		return "", err
	}
	return target, nil
}

// EncryptBytes produces a Fernet token for plaintext signed at the given
// time.
func EncryptBytes(plaintext []byte, key string, signedAt time.Time) ([]byte, error) {
	k, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	token, err := fernet.EncryptAndSignAtTime(plaintext, k, signedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}
	return token, nil
}

// DecryptBytes verifies token under key and returns the plaintext. Any
// deviation from a well-formed, correctly signed token, including
// non-canonical base64, yields ErrAuthenticationFailure.
func DecryptBytes(token []byte, key string, maxAge time.Duration) ([]byte, error) {
	k, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	raw, err := base64.URLEncoding.Strict().DecodeString(string(token))
	if err != nil || base64.URLEncoding.EncodeToString(raw) != string(token) {
		return nil, fmt.Errorf("%w: malformed token", ErrAuthenticationFailure)
	}
	msg := fernet.VerifyAndDecrypt(token, maxAge, []*fernet.Key{k})
	if msg == nil {
		return nil, ErrAuthenticationFailure
	}
	return msg, nil
}

func decodeKey(key string) (*fernet.Key, error) {
	k, err := fernet.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

func (c *Cipher) readFile(path string) ([]byte, os.FileMode, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	mode := info.Mode().Perm()
	if mode == 0 {
		mode = defaultFileMode
	}
	return data, mode, nil
}

// writeAtomic writes data to a temp file beside path and renames it over
// path.
func (c *Cipher) writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := afero.TempFile(c.fs, filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = c.fs.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := c.fs.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := c.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}
