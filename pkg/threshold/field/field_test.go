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

package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrime_SupportedExponents(t *testing.T) {
	for _, e := range SupportedExponents() {
		p, err := Prime(e)
		require.NoError(t, err)

		// 2^e - 1 has exactly e bits, all set
		assert.Equal(t, e, p.BitLen())
		assert.True(t, p.ProbablyPrime(20), "2^%d-1 should be prime", e)
	}
	assert.Equal(t, []int{89, 107, 127, 521}, SupportedExponents())
}

func TestPrime_Unsupported(t *testing.T) {
	for _, e := range []int{0, 3, 61, 128, 607} {
		_, err := Prime(e)
		assert.ErrorIs(t, err, ErrUnsupportedExponent)
		assert.False(t, IsSupported(e))
	}
}

func TestPrime_ReturnsCopy(t *testing.T) {
	p1, err := Prime(Exponent89)
	require.NoError(t, err)
	p1.SetInt64(7)

	p2, err := Prime(Exponent89)
	require.NoError(t, err)
	assert.Equal(t, 89, p2.BitLen())
}

func TestExtendedGCD(t *testing.T) {
	tests := []struct {
		a, b int64
		gcd  int64
	}{
		{240, 46, 2},
		{46, 240, 2},
		{17, 5, 1},
		{0, 9, 9},
		{9, 0, 9},
		{-35, 15, 5},
		{1, 1, 1},
	}

	for _, tt := range tests {
		a, b := big.NewInt(tt.a), big.NewInt(tt.b)
		g, x, y := ExtendedGCD(a, b)
		assert.Equal(t, tt.gcd, g.Int64(), "gcd(%d, %d)", tt.a, tt.b)

		// a*x + b*y == g
		lhs := new(big.Int).Mul(a, x)
		lhs.Add(lhs, new(big.Int).Mul(b, y))
		assert.Equal(t, 0, lhs.Cmp(g), "bezout identity for (%d, %d)", tt.a, tt.b)
	}
}

func TestModInverse(t *testing.T) {
	p, err := Prime(Exponent127)
	require.NoError(t, err)

	values := []*big.Int{
		big.NewInt(1),
		big.NewInt(2),
		big.NewInt(123456789),
		new(big.Int).Sub(p, big.NewInt(1)),
		big.NewInt(-5),
	}
	for _, v := range values {
		inv, err := ModInverse(v, p)
		require.NoError(t, err)

		expected := new(big.Int).ModInverse(Mod(v, p), p)
		assert.Equal(t, 0, inv.Cmp(expected), "inverse of %s", v)

		prod := Mod(new(big.Int).Mul(v, inv), p)
		assert.Equal(t, int64(1), prod.Int64())
	}
}

func TestModInverse_Errors(t *testing.T) {
	p, err := Prime(Exponent89)
	require.NoError(t, err)

	_, err = ModInverse(big.NewInt(0), p)
	assert.ErrorIs(t, err, ErrNotInvertible)

	_, err = ModInverse(p, p)
	assert.ErrorIs(t, err, ErrNotInvertible)

	// Composite modulus with a shared factor
	_, err = ModInverse(big.NewInt(4), big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotInvertible)

	_, err = ModInverse(big.NewInt(3), nil)
	assert.ErrorIs(t, err, ErrInvalidModulus)

	_, err = ModInverse(big.NewInt(3), big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidModulus)
}

func TestDivMod(t *testing.T) {
	p := big.NewInt(7)

	// 3/2 mod 7 = 3*4 mod 7 = 5
	r, err := DivMod(big.NewInt(3), big.NewInt(2), p)
	require.NoError(t, err)
	assert.Equal(t, int64(5), r.Int64())

	// Negative numerators normalize into [0, p)
	r, err = DivMod(big.NewInt(-3), big.NewInt(2), p)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Int64())

	_, err = DivMod(big.NewInt(1), big.NewInt(14), p)
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestMod(t *testing.T) {
	p := big.NewInt(11)
	assert.Equal(t, int64(1), Mod(big.NewInt(12), p).Int64())
	assert.Equal(t, int64(10), Mod(big.NewInt(-1), p).Int64())
	assert.Equal(t, int64(0), Mod(big.NewInt(-22), p).Int64())
}
