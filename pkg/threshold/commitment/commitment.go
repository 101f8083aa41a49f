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

// Package commitment stores a salted slow hash of a scheme secret so that a
// recovered secret can later be checked without the secret itself ever
// being persisted.
//
// Two encodings are produced:
//
//	pbkdf2_sha256$<iterations>$<salt>$<base64 hash>
//	argon2id$v=19$m=<KiB>,t=<time>,p=<threads>$<b64 salt>$<b64 hash>
//
// The PBKDF2 form is byte-compatible with Django's default password
// hasher, so commitments written by the original application verify here.
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-sharelock/pkg/adapters/kdf"
)

const (
	separator = "$"

	// saltChars is the alphabet of PBKDF2 salts
	saltChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// pbkdf2SaltLength gives ~128 bits of entropy over saltChars
	pbkdf2SaltLength = 22

	// argon2SaltLength is the raw salt length in bytes
	argon2SaltLength = 16

	minHashLength = 16
	maxHashLength = 64
)

var (
	// ErrMalformedCommitment indicates an encoded commitment could not be parsed
	ErrMalformedCommitment = errors.New("malformed commitment")

	// ErrInvalidSecret indicates a nil secret was supplied
	ErrInvalidSecret = errors.New("invalid secret")
)

// Hasher produces and verifies commitments. The zero value is not usable;
// construct with New.
type Hasher struct {
	params kdf.Params
	rng    io.Reader
}

// Option configures a Hasher
type Option func(*Hasher)

// WithAlgorithm selects the commitment algorithm and resets the cost
// parameters to that algorithm's defaults.
func WithAlgorithm(algorithm kdf.Algorithm) Option {
	return func(h *Hasher) {
		if p := kdf.DefaultParams(algorithm); p != nil {
			h.params = *p
			return
		}
		h.params = kdf.Params{Algorithm: algorithm}
	}
}

// WithIterations sets the PBKDF2 iteration count
func WithIterations(iterations int) Option {
	return func(h *Hasher) {
		h.params.Iterations = iterations
	}
}

// WithArgon2Cost sets the Argon2id memory (KiB), time and thread costs
func WithArgon2Cost(memory, time uint32, threads uint8) Option {
	return func(h *Hasher) {
		h.params.Memory = memory
		h.params.Time = time
		h.params.Threads = threads
	}
}

// WithRand sets the salt source. Defaults to crypto/rand.Reader.
func WithRand(r io.Reader) Option {
	return func(h *Hasher) {
		h.rng = r
	}
}

// New returns a Hasher that commits with PBKDF2-SHA256 unless configured
// otherwise. The configured parameters are validated up front.
func New(opts ...Option) (*Hasher, error) {
	h := &Hasher{
		params: *kdf.DefaultParams(kdf.AlgorithmPBKDF2SHA256),
		rng:    rand.Reader,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rng == nil {
		h.rng = rand.Reader
	}

	switch h.params.Algorithm {
	case kdf.AlgorithmPBKDF2SHA256, kdf.AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("commitment: %w: %q", kdf.ErrUnsupportedAlgorithm, h.params.Algorithm)
	}

	// Validate with a placeholder salt of the length Commit will generate
	probe := h.params
	probe.Salt = make([]byte, argon2SaltLength)
	adapter, err := kdf.New(probe.Algorithm)
	if err != nil {
		return nil, err
	}
	if err := adapter.ValidateParams(&probe); err != nil {
		return nil, fmt.Errorf("commitment: %w", err)
	}
	return h, nil
}

// Algorithm returns the algorithm new commitments are produced with
func (h *Hasher) Algorithm() kdf.Algorithm {
	return h.params.Algorithm
}

// Commit hashes the decimal representation of secret under a fresh salt
// and returns the encoded commitment.
func (h *Hasher) Commit(secret *big.Int) (string, error) {
	if secret == nil {
		return "", ErrInvalidSecret
	}
	password := []byte(secret.String())

	switch h.params.Algorithm {
	case kdf.AlgorithmPBKDF2SHA256:
		salt, err := randomString(h.rng, pbkdf2SaltLength)
		if err != nil {
			return "", err
		}
		params := h.params
		params.Salt = []byte(salt)
		hash, err := kdf.Derive(password, &params)
		if err != nil {
			return "", fmt.Errorf("commitment: %w", err)
		}
		return encodePBKDF2(params.Iterations, salt, hash), nil

	case kdf.AlgorithmArgon2id:
		salt := make([]byte, argon2SaltLength)
		if _, err := io.ReadFull(h.rng, salt); err != nil {
			return "", fmt.Errorf("commitment: failed to generate salt: %w", err)
		}
		params := h.params
		params.Salt = salt
		hash, err := kdf.Derive(password, &params)
		if err != nil {
			return "", fmt.Errorf("commitment: %w", err)
		}
		return encodeArgon2id(&params, hash), nil
	}
	return "", fmt.Errorf("commitment: %w: %q", kdf.ErrUnsupportedAlgorithm, h.params.Algorithm)
}

// Verify reports whether secret matches the encoded commitment. The
// algorithm and cost are taken from the encoding, not from the Hasher, so
// commitments made under older settings keep verifying.
func (h *Hasher) Verify(secret *big.Int, encoded string) (bool, error) {
	return Verify(secret, encoded)
}

// Verify reports whether secret matches the encoded commitment.
// A mismatch is (false, nil); an unparseable encoding is an error
// wrapping ErrMalformedCommitment.
func Verify(secret *big.Int, encoded string) (bool, error) {
	if secret == nil {
		return false, ErrInvalidSecret
	}
	params, want, err := Parse(encoded)
	if err != nil {
		return false, err
	}

	got, err := kdf.Derive([]byte(secret.String()), params)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedCommitment, err)
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Parse decodes an encoded commitment into its derivation parameters and
// the expected hash.
func Parse(encoded string) (*kdf.Params, []byte, error) {
	algorithm, _, ok := strings.Cut(encoded, separator)
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing algorithm", ErrMalformedCommitment)
	}
	switch kdf.Algorithm(algorithm) {
	case kdf.AlgorithmPBKDF2SHA256:
		return parsePBKDF2(encoded)
	case kdf.AlgorithmArgon2id:
		return parseArgon2id(encoded)
	default:
		return nil, nil, fmt.Errorf("%w: unknown algorithm %q", ErrMalformedCommitment, algorithm)
	}
}

// AlgorithmOf returns the algorithm named by an encoded commitment
func AlgorithmOf(encoded string) (kdf.Algorithm, error) {
	params, _, err := Parse(encoded)
	if err != nil {
		return "", err
	}
	return params.Algorithm, nil
}

func encodePBKDF2(iterations int, salt string, hash []byte) string {
	return strings.Join([]string{
		string(kdf.AlgorithmPBKDF2SHA256),
		strconv.Itoa(iterations),
		salt,
		base64.StdEncoding.EncodeToString(hash),
	}, separator)
}

func parsePBKDF2(encoded string) (*kdf.Params, []byte, error) {
	parts := strings.Split(encoded, separator)
	if len(parts) != 4 {
		return nil, nil, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedCommitment, len(parts))
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid iterations %q", ErrMalformedCommitment, parts[1])
	}
	if parts[2] == "" {
		return nil, nil, fmt.Errorf("%w: empty salt", ErrMalformedCommitment)
	}
	hash, err := decodeHash(base64.StdEncoding, parts[3])
	if err != nil {
		return nil, nil, err
	}
	return &kdf.Params{
		Algorithm:  kdf.AlgorithmPBKDF2SHA256,
		Salt:       []byte(parts[2]),
		Iterations: iterations,
		KeyLength:  len(hash),
	}, hash, nil
}

func encodeArgon2id(params *kdf.Params, hash []byte) string {
	return fmt.Sprintf("%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		kdf.AlgorithmArgon2id,
		kdf.Argon2Version,
		params.Memory, params.Time, params.Threads,
		base64.RawStdEncoding.EncodeToString(params.Salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func parseArgon2id(encoded string) (*kdf.Params, []byte, error) {
	parts := strings.Split(encoded, separator)
	if len(parts) != 5 {
		return nil, nil, fmt.Errorf("%w: expected 5 fields, got %d", ErrMalformedCommitment, len(parts))
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != kdf.Argon2Version {
		return nil, nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedCommitment, parts[1])
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid cost parameters %q", ErrMalformedCommitment, parts[2])
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return nil, nil, fmt.Errorf("%w: invalid salt", ErrMalformedCommitment)
	}
	hash, err := decodeHash(base64.RawStdEncoding, parts[4])
	if err != nil {
		return nil, nil, err
	}

	return &kdf.Params{
		Algorithm: kdf.AlgorithmArgon2id,
		Salt:      salt,
		Memory:    memory,
		Time:      time,
		Threads:   threads,
		KeyLength: len(hash),
	}, hash, nil
}

func decodeHash(enc *base64.Encoding, s string) ([]byte, error) {
	hash, err := enc.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hash encoding", ErrMalformedCommitment)
	}
	if len(hash) < minHashLength || len(hash) > maxHashLength {
		return nil, fmt.Errorf("%w: hash length %d", ErrMalformedCommitment, len(hash))
	}
	return hash, nil
}

// randomString draws n characters uniformly from saltChars.
func randomString(rng io.Reader, n int) (string, error) {
	// Largest multiple of len(saltChars) that fits in a byte
	limit := byte(256 - 256%len(saltChars))

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return "", fmt.Errorf("commitment: failed to generate salt: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, saltChars[int(b)%len(saltChars)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
