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

// Package shamir implements Shamir's Secret Sharing over the Mersenne prime
// fields of package field: a random polynomial of degree K-1 whose constant
// term is the secret is evaluated at x = 1..N, and any K of the resulting
// points recover the secret by Lagrange interpolation at x = 0.
//
// Recovery cannot tell on its own whether a set of two or more shares
// belongs to the original polynomial; it always produces some value. The
// commitment package is the authority on whether a recovered secret is the
// committed one.
package shamir

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/jeremyhahn/go-sharelock/pkg/threshold/field"
)

const (
	// MinShares is the smallest threshold and share count accepted
	MinShares = 2

	// MaxShares is the largest share count a scheme can generate
	MaxShares = 20
)

var (
	// ErrInvalidParameters indicates invalid threshold parameters
	ErrInvalidParameters = errors.New("invalid threshold parameters")

	// ErrInsufficientShares indicates not enough shares were provided for reconstruction
	ErrInsufficientShares = errors.New("insufficient shares for threshold reconstruction")

	// ErrInvalidShare indicates a share failed validation
	ErrInvalidShare = errors.New("invalid share")

	// ErrDuplicateIndex indicates two shares in a set carry the same index
	ErrDuplicateIndex = fmt.Errorf("%w: duplicate index", ErrInvalidShare)

	// ErrMalformedShare indicates a share string could not be decoded
	ErrMalformedShare = errors.New("malformed share")
)

// InsufficientSharesError wraps ErrInsufficientShares with details.
type InsufficientSharesError struct {
	Have      int
	Threshold int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares: have %d, need %d", e.Have, e.Threshold)
}

func (e *InsufficientSharesError) Unwrap() error {
	return ErrInsufficientShares
}

// ValidateParameters checks 2 <= k <= n <= MaxShares.
func ValidateParameters(k, n int) error {
	if k < MinShares {
		return fmt.Errorf("%w: threshold must be at least %d, got %d", ErrInvalidParameters, MinShares, k)
	}
	if k > n {
		return fmt.Errorf("%w: threshold (%d) cannot be greater than total shares (%d)", ErrInvalidParameters, k, n)
	}
	if n > MaxShares {
		return fmt.Errorf("%w: total shares cannot exceed %d, got %d", ErrInvalidParameters, MaxShares, n)
	}
	return nil
}

// Split draws a random polynomial of degree k-1 over GF(p) and evaluates it
// at x = 1..n. The constant term is returned as the secret, separately from
// the shares; callers are expected to commit to it and drop it.
//
// Coefficients are drawn uniformly from [0, p) using rng, which must be a
// cryptographically secure source in production. A nil rng uses
// crypto/rand.Reader.
//
// Example:
//
//	p, _ := field.Prime(field.Exponent127)
//	secret, shares, err := shamir.Split(nil, 3, 5, p)
//	// any 3 of the 5 shares recover secret
func Split(rng io.Reader, k, n int, p *big.Int) (*big.Int, []Share, error) {
	if err := ValidateParameters(k, n); err != nil {
		return nil, nil, err
	}
	if p == nil || p.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidParameters, field.ErrInvalidModulus)
	}
	if rng == nil {
		rng = rand.Reader
	}

	// p(x) = a0 + a1*x + ... + a(k-1)*x^(k-1), a0 is the secret
	coeffs := make([]*big.Int, k)
	for i := range coeffs {
		c, err := rand.Int(rng, p)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate random coefficients: %w", err)
		}
		coeffs[i] = c
	}

	shares := make([]Share, n)
	for i := 0; i < n; i++ {
		x := big.NewInt(int64(i + 1))
		shares[i] = Share{
			Index: i + 1, // 1-indexed, x = 0 holds the secret
			Value: evaluatePolynomial(coeffs, x, p),
		}
	}

	return coeffs[0], shares, nil
}

// evaluatePolynomial evaluates the polynomial at x modulo p.
// Uses Horner's method: p(x) = a0 + x(a1 + x(a2 + ... + x*an))
func evaluatePolynomial(coeffs []*big.Int, x, p *big.Int) *big.Int {
	result := new(big.Int)
	if len(coeffs) == 0 {
		return result
	}

	result.Set(coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		result.Mul(result, x)
		result.Add(result, coeffs[i])
		result.Mod(result, p)
	}
	return result.Mod(result, p)
}

// ValidateSet checks every share against p and rejects duplicate indices.
func ValidateSet(shares []Share, p *big.Int) error {
	seen := make(map[int]struct{}, len(shares))
	for i, s := range shares {
		if err := s.Validate(p); err != nil {
			return fmt.Errorf("share %d: %w", i, err)
		}
		if _, dup := seen[s.Index]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, s.Index)
		}
		seen[s.Index] = struct{}{}
	}
	return nil
}

// Combine recovers the polynomial's value at x = 0 from two or more shares
// with pairwise-distinct indices using Lagrange interpolation:
//
//	secret = sum_i y_i * prod_{j != i} (0 - x_j) / (x_i - x_j)  mod p
//
// Supplying fewer shares than the scheme's threshold still produces a
// value; use CombineThreshold when the threshold is known.
func Combine(shares []Share, p *big.Int) (*big.Int, error) {
	if len(shares) < MinShares {
		return nil, &InsufficientSharesError{Have: len(shares), Threshold: MinShares}
	}
	if p == nil || p.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, field.ErrInvalidModulus)
	}
	if err := ValidateSet(shares, p); err != nil {
		return nil, err
	}

	secret := new(big.Int)
	for i := range shares {
		xi := big.NewInt(int64(shares[i].Index))

		num := big.NewInt(1)
		den := big.NewInt(1)
		for j := range shares {
			if i == j {
				continue
			}
			xj := big.NewInt(int64(shares[j].Index))

			// num *= (0 - xj)
			num.Mul(num, new(big.Int).Neg(xj))

			// den *= (xi - xj)
			den.Mul(den, new(big.Int).Sub(xi, xj))
		}

		term := new(big.Int).Mul(shares[i].Value, num)
		basis, err := field.DivMod(term, den, p)
		if err != nil {
			return nil, fmt.Errorf("lagrange term %d: %w", i, err)
		}
		secret.Add(secret, basis)
	}

	// Normalize into [0, p)
	secret.Add(secret, p)
	return secret.Mod(secret, p), nil
}

// CombineThreshold is Combine with the additional requirement that at
// least k shares are supplied.
func CombineThreshold(shares []Share, k int, p *big.Int) (*big.Int, error) {
	if len(shares) < k {
		return nil, &InsufficientSharesError{Have: len(shares), Threshold: k}
	}
	return Combine(shares, p)
}
