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

// Package field implements modular integer arithmetic over the Mersenne
// prime fields used by the threshold scheme.
//
// Every prime is of the form p = 2^e - 1 where e is taken from a fixed
// allow-list of Mersenne prime exponents. All functions are pure and safe
// for concurrent use; the returned *big.Int values are always fresh copies.
package field

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
)

var (
	// ErrUnsupportedExponent is returned when an exponent is not on the allow-list
	ErrUnsupportedExponent = errors.New("field: unsupported mersenne exponent")

	// ErrNotInvertible is returned when a value has no inverse modulo p
	ErrNotInvertible = errors.New("field: value is not invertible")

	// ErrInvalidModulus is returned for a nil or non-positive modulus
	ErrInvalidModulus = errors.New("field: invalid modulus")
)

// Mersenne exponents accepted by the scheme. Each yields a prime 2^e - 1.
const (
	Exponent89  = 89
	Exponent107 = 107
	Exponent127 = 127
	Exponent521 = 521
)

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	cache map[int]*big.Int
)

func init() {
	cache = make(map[int]*big.Int, 4)
	for _, e := range []int{Exponent89, Exponent107, Exponent127, Exponent521} {
		cache[e] = mersenne(e)
	}
}

// mersenne computes 2^e - 1.
func mersenne(e int) *big.Int {
	p := new(big.Int).Exp(two, big.NewInt(int64(e)), nil)
	return p.Sub(p, one)
}

// SupportedExponents returns the allow-listed exponents in ascending order.
func SupportedExponents() []int {
	exps := make([]int, 0, len(cache))
	for e := range cache {
		exps = append(exps, e)
	}
	sort.Ints(exps)
	return exps
}

// IsSupported reports whether e is an allow-listed exponent.
func IsSupported(e int) bool {
	_, ok := cache[e]
	return ok
}

// Prime returns p = 2^e - 1 for an allow-listed exponent.
func Prime(e int) (*big.Int, error) {
	p, ok := cache[e]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedExponent, e)
	}
	return new(big.Int).Set(p), nil
}

// Mod reduces a into [0, p).
func Mod(a, p *big.Int) *big.Int {
	r := new(big.Int).Rem(a, p)
	if r.Sign() < 0 {
		r.Add(r, p)
	}
	return r
}

// ExtendedGCD runs the iterative extended Euclidean algorithm and returns
// g = gcd(a, b) together with the Bezout coefficients x, y such that
// a*x + b*y = g.
func ExtendedGCD(a, b *big.Int) (g, x, y *big.Int) {
	oldR, r := new(big.Int).Set(a), new(big.Int).Set(b)
	oldS, s := big.NewInt(1), big.NewInt(0)
	oldT, t := big.NewInt(0), big.NewInt(1)

	q := new(big.Int)
	tmp := new(big.Int)
	for r.Sign() != 0 {
		q.Quo(oldR, r)

		tmp.Mul(q, r)
		oldR, r = r, new(big.Int).Sub(oldR, tmp)

		tmp.Mul(q, s)
		oldS, s = s, new(big.Int).Sub(oldS, tmp)

		tmp.Mul(q, t)
		oldT, t = t, new(big.Int).Sub(oldT, tmp)
	}

	// Keep the gcd non-negative
	if oldR.Sign() < 0 {
		oldR.Neg(oldR)
		oldS.Neg(oldS)
		oldT.Neg(oldT)
	}
	return oldR, oldS, oldT
}

// ModInverse returns a^-1 mod p. The caller must ensure gcd(a, p) = 1,
// which always holds for a prime p and a != 0 mod p.
func ModInverse(a, p *big.Int) (*big.Int, error) {
	if p == nil || p.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	r := Mod(a, p)
	if r.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero modulo p", ErrNotInvertible)
	}
	g, x, _ := ExtendedGCD(r, p)
	if g.Cmp(one) != 0 {
		return nil, fmt.Errorf("%w: gcd is %s", ErrNotInvertible, g.String())
	}
	return Mod(x, p), nil
}

// DivMod computes num * den^-1 mod p, the field fraction num/den.
func DivMod(num, den, p *big.Int) (*big.Int, error) {
	inv, err := ModInverse(den, p)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).Mul(num, inv)
	return Mod(r, p), nil
}
