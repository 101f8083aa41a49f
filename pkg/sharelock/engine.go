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

// Package sharelock is the boundary of the secret-sharing and
// file-encryption core. An Engine generates (k,n) schemes over a Mersenne
// prime field, checks submitted shares against a scheme's commitment and
// uses the recovered secret to encrypt or decrypt files.
//
// The Engine holds no per-scheme state. Scheme records and asset links are
// the business of package scheme.
//
// Basic usage:
//
//	engine, err := sharelock.New()
//	commitment, shares, err := engine.GenerateScheme(3, 5, 127)
//	ok, err := engine.VerifyShares(commitment, 127, shares[:3])
//	encPath, err := engine.EncryptFile("report.pdf", 127, shares[1:4])
package sharelock

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/crypto/filecipher"
	"github.com/jeremyhahn/go-sharelock/pkg/crypto/keyderiv"
	"github.com/jeremyhahn/go-sharelock/pkg/metrics"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/commitment"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/field"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
)

// Engine is safe for concurrent use. It performs no locking on file paths;
// callers serialize transforms of the same asset.
type Engine struct {
	rng     io.Reader
	hasher  *commitment.Hasher
	cipher  *filecipher.Cipher
	keyMode keyderiv.Mode
	logger  logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the randomness source for polynomial coefficients and
// commitment salts. Defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithHasher sets the commitment hasher. Defaults to PBKDF2-SHA256.
func WithHasher(h *commitment.Hasher) Option {
	return func(e *Engine) {
		e.hasher = h
	}
}

// WithCipher sets the file cipher. Defaults to the OS filesystem with no
// token expiry.
func WithCipher(c *filecipher.Cipher) Option {
	return func(e *Engine) {
		e.cipher = c
	}
}

// WithKeyMode selects how file keys are derived from the secret.
func WithKeyMode(m keyderiv.Mode) Option {
	return func(e *Engine) {
		e.keyMode = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		keyMode: keyderiv.ModeLegacy,
		logger:  logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if _, err := keyderiv.ParseMode(string(e.keyMode)); err != nil {
		return nil, err
	}
	if e.hasher == nil {
		var hopts []commitment.Option
		if e.rng != nil {
			hopts = append(hopts, commitment.WithRand(e.rng))
		}
		h, err := commitment.New(hopts...)
		if err != nil {
			return nil, fmt.Errorf("commitment hasher: %w", err)
		}
		e.hasher = h
	}
	if e.cipher == nil {
		e.cipher = filecipher.New(nil)
	}
	return e, nil
}

// KeyMode returns the configured key derivation mode.
func (e *Engine) KeyMode() keyderiv.Mode {
	return e.keyMode
}

// Cipher returns the file cipher, exposing its filesystem to callers that
// manage the files the engine writes.
func (e *Engine) Cipher() *filecipher.Cipher {
	return e.cipher
}

// GenerateScheme draws a fresh secret, splits it into n shares of which any
// k recover it, and returns the commitment to the secret together with the
// shares. The secret itself is discarded.
func (e *Engine) GenerateScheme(k, n, fieldExponent int) (string, []shamir.Share, error) {
	start := time.Now()
	commit, shares, err := e.generate(k, n, fieldExponent)
	e.observe(metrics.OpGenerate, fieldExponent, start, err)
	if err != nil {
		return "", nil, err
	}

	e.logger.Debug("scheme generated",
		logger.Int("k", k),
		logger.Int("n", n),
		logger.Int("field_exponent", fieldExponent),
		logger.String("algorithm", string(e.hasher.Algorithm())))
	return commit, shares, nil
}

func (e *Engine) generate(k, n, fieldExponent int) (string, []shamir.Share, error) {
	p, err := prime(fieldExponent)
	if err != nil {
		return "", nil, err
	}

	secret, shares, err := shamir.Split(e.rng, k, n, p)
	if err != nil {
		return "", nil, err
	}

	commit, err := e.hasher.Commit(secret)
	if err != nil {
		return "", nil, fmt.Errorf("commit secret: %w", err)
	}
	return commit, shares, nil
}

// VerifyShares reports whether shares interpolate to the committed secret.
// A well-formed share set that yields a different value returns false with
// a nil error. Malformed shares or commitments return an error.
func (e *Engine) VerifyShares(commit string, fieldExponent int, shares []shamir.Share) (bool, error) {
	start := time.Now()
	err := e.checkShares(commit, fieldExponent, shares)
	e.observe(metrics.OpVerify, fieldExponent, start, err)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCommitmentMismatch):
		return false, nil
	default:
		return false, err
	}
}

// CheckShares is VerifyShares reporting a mismatch as ErrCommitmentMismatch.
func (e *Engine) CheckShares(commit string, fieldExponent int, shares []shamir.Share) error {
	ok, err := e.VerifyShares(commit, fieldExponent, shares)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w (shares %v)", ErrCommitmentMismatch, shamir.Indices(shares))
	}
	return nil
}

func (e *Engine) checkShares(commit string, fieldExponent int, shares []shamir.Share) error {
	secret, err := e.recover(fieldExponent, shares)
	if err != nil {
		return err
	}
	ok, err := e.hasher.Verify(secret, commit)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCommitmentMismatch
	}
	return nil
}

// RecoverSecret interpolates the secret from two or more shares. The result
// is only known to be correct after verification against a commitment.
func (e *Engine) RecoverSecret(fieldExponent int, shares []shamir.Share) (*big.Int, error) {
	start := time.Now()
	secret, err := e.recover(fieldExponent, shares)
	e.observe(metrics.OpRecover, fieldExponent, start, err)
	return secret, err
}

func (e *Engine) recover(fieldExponent int, shares []shamir.Share) (*big.Int, error) {
	p, err := prime(fieldExponent)
	if err != nil {
		return nil, err
	}
	return shamir.Combine(shares, p)
}

// EncryptFile recovers the secret from shares, derives the file key and
// writes the authenticated token for path to path + ".enc". The source is
// left in place. Shares are not checked against a commitment here.
func (e *Engine) EncryptFile(path string, fieldExponent int, shares []shamir.Share) (string, error) {
	start := time.Now()
	var out string
	err := ensureEncrypted(path, false)
	if err == nil {
		out, err = e.transform(path, fieldExponent, shares, e.cipher.Encrypt)
	}
	e.observe(metrics.OpEncrypt, fieldExponent, start, err)
	if err != nil {
		return "", err
	}

	e.logger.Info("file encrypted",
		logger.String("path", out),
		logger.ShareIndices(shamir.Indices(shares)))
	return out, nil
}

// DecryptFile recovers the secret from shares, derives the file key and
// writes the plaintext of the token at path to path without ".enc". Any
// token failure, including a wrong share set, is ErrAuthenticationFailure.
func (e *Engine) DecryptFile(path string, fieldExponent int, shares []shamir.Share) (string, error) {
	start := time.Now()
	var out string
	err := ensureEncrypted(path, true)
	if err == nil {
		out, err = e.transform(path, fieldExponent, shares, e.cipher.Decrypt)
	}
	e.observe(metrics.OpDecrypt, fieldExponent, start, err)
	if err != nil {
		return "", err
	}

	e.logger.Info("file decrypted",
		logger.String("path", out),
		logger.ShareIndices(shamir.Indices(shares)))
	return out, nil
}

// ensureEncrypted rejects a transform in the wrong state before any share
// work is done.
func ensureEncrypted(path string, want bool) error {
	switch encrypted := filecipher.IsEncrypted(path); {
	case want && !encrypted:
		return fmt.Errorf("%w: %s", ErrNotEncrypted, path)
	case !want && encrypted:
		return fmt.Errorf("%w: %s", ErrAlreadyEncrypted, path)
	}
	return nil
}

func (e *Engine) transform(path string, fieldExponent int, shares []shamir.Share, op func(path, key string) (string, error)) (string, error) {
	secret, err := e.recover(fieldExponent, shares)
	if err != nil {
		return "", err
	}
	key, err := keyderiv.Derive(secret, e.keyMode)
	if err != nil {
		return "", err
	}
	return op(path, key)
}

// EncodeShare renders a share in its "<index>-<base64>" string form.
func (e *Engine) EncodeShare(s shamir.Share) string {
	return shamir.EncodeShare(s)
}

// DecodeShare parses the string form produced by EncodeShare.
func (e *Engine) DecodeShare(s string) (shamir.Share, error) {
	return shamir.DecodeShare(s)
}

// prime resolves an allow-listed exponent, reporting anything else as
// ErrInvalidParameters.
func prime(fieldExponent int) (*big.Int, error) {
	p, err := field.Prime(fieldExponent)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return p, nil
}

func (e *Engine) observe(op string, fieldExponent int, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(op, ErrorType(err))
		e.logger.Debug("operation failed",
			logger.String("operation", op),
			logger.Int("field_exponent", fieldExponent),
			logger.Error(err))
	}
	metrics.RecordOperation(op, fieldLabel(fieldExponent), status, time.Since(start).Seconds())
}

func fieldLabel(fieldExponent int) string {
	if !field.IsSupported(fieldExponent) {
		return "unsupported"
	}
	return strconv.Itoa(fieldExponent)
}
