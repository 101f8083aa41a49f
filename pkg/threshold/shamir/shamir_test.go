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

package shamir

import (
	"math/big"
	mrand "math/rand/v2"
	"testing"

	"github.com/jeremyhahn/go-sharelock/pkg/threshold/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seededReader returns a deterministic stream for reproducible tests.
func seededReader(seed byte) *mrand.ChaCha8 {
	var s [32]byte
	s[0] = seed
	return mrand.NewChaCha8(s)
}

func mustPrime(t *testing.T, e int) *big.Int {
	t.Helper()
	p, err := field.Prime(e)
	require.NoError(t, err)
	return p
}

// combinations returns every k-element subset of shares, in index order.
func combinations(shares []Share, k int) [][]Share {
	var out [][]Share
	var walk func(start int, cur []Share)
	walk = func(start int, cur []Share) {
		if len(cur) == k {
			out = append(out, append([]Share(nil), cur...))
			return
		}
		for i := start; i < len(shares); i++ {
			walk(i+1, append(cur, shares[i]))
		}
	}
	walk(0, nil)
	return out
}

func pick(shares []Share, indices ...int) []Share {
	out := make([]Share, 0, len(indices))
	for _, idx := range indices {
		out = append(out, shares[idx-1])
	}
	return out
}

func TestSplit_BasicFunctionality(t *testing.T) {
	p := mustPrime(t, field.Exponent127)
	threshold, total := 3, 5

	secret, shares, err := Split(nil, threshold, total, p)
	require.NoError(t, err)
	require.Len(t, shares, total)
	require.NotNil(t, secret)

	assert.True(t, secret.Sign() >= 0 && secret.Cmp(p) < 0)
	for i, share := range shares {
		assert.Equal(t, i+1, share.Index)
		assert.NoError(t, share.Validate(p))
	}
}

func TestSplit_ParameterValidation(t *testing.T) {
	p := mustPrime(t, field.Exponent89)

	tests := []struct {
		name      string
		threshold int
		total     int
		wantErr   bool
	}{
		{"minimum scheme", 2, 2, false},
		{"maximum scheme", 20, 20, false},
		{"threshold too low", 1, 5, true},
		{"threshold greater than total", 5, 3, true},
		{"total exceeds max", 3, MaxShares + 1, true},
		{"threshold exceeds max", MaxShares + 1, MaxShares + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, shares, err := Split(nil, tt.threshold, tt.total, p)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameters)
				assert.Nil(t, shares)
				return
			}
			require.NoError(t, err)
			assert.Len(t, shares, tt.total)
		})
	}
}

func TestSplit_InvalidModulus(t *testing.T) {
	_, _, err := Split(nil, 2, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, _, err = Split(nil, 2, 3, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestSplit_DeterministicWithSeededReader(t *testing.T) {
	p := mustPrime(t, field.Exponent107)

	s1, shares1, err := Split(seededReader(7), 3, 6, p)
	require.NoError(t, err)
	s2, shares2, err := Split(seededReader(7), 3, 6, p)
	require.NoError(t, err)

	assert.Equal(t, 0, s1.Cmp(s2))
	for i := range shares1 {
		assert.Equal(t, 0, shares1[i].Value.Cmp(shares2[i].Value))
	}

	s3, _, err := Split(seededReader(8), 3, 6, p)
	require.NoError(t, err)
	assert.NotEqual(t, 0, s1.Cmp(s3))
}

func TestCombine_ExactThreshold(t *testing.T) {
	p := mustPrime(t, field.Exponent127)

	secret, shares, err := Split(nil, 3, 5, p)
	require.NoError(t, err)

	recovered, err := Combine(pick(shares, 1, 3, 5), p)
	require.NoError(t, err)
	assert.Equal(t, 0, secret.Cmp(recovered))
}

func TestCombine_AllShares(t *testing.T) {
	p := mustPrime(t, field.Exponent521)

	secret, shares, err := Split(nil, 4, 9, p)
	require.NoError(t, err)

	recovered, err := Combine(shares, p)
	require.NoError(t, err)
	assert.Equal(t, 0, secret.Cmp(recovered))
}

func TestCombine_EveryKSubset(t *testing.T) {
	for _, e := range field.SupportedExponents() {
		p := mustPrime(t, e)
		secret, shares, err := Split(seededReader(byte(e)), 3, 6, p)
		require.NoError(t, err)

		for _, subset := range combinations(shares, 3) {
			recovered, err := Combine(subset, p)
			require.NoError(t, err)
			assert.Equal(t, 0, secret.Cmp(recovered), "exponent %d subset %v", e, Indices(subset))
		}
	}
}

func TestCombine_AllParameterPairs(t *testing.T) {
	rng := seededReader(42)
	pr := mrand.New(mrand.NewPCG(1, 2))

	for _, e := range field.SupportedExponents() {
		p := mustPrime(t, e)
		for n := MinShares; n <= MaxShares; n++ {
			for k := MinShares; k <= n; k++ {
				secret, shares, err := Split(rng, k, n, p)
				require.NoError(t, err)

				// Random k-subset in shuffled order
				perm := pr.Perm(n)
				subset := make([]Share, k)
				for i := 0; i < k; i++ {
					subset[i] = shares[perm[i]]
				}

				recovered, err := Combine(subset, p)
				require.NoError(t, err)
				require.Equal(t, 0, secret.Cmp(recovered), "e=%d k=%d n=%d", e, k, n)
			}
		}
	}
}

func TestCombine_ScenarioTwoOfThree(t *testing.T) {
	p := mustPrime(t, field.Exponent89)

	secret, shares, err := Split(nil, 2, 3, p)
	require.NoError(t, err)

	fromOneThree, err := Combine(pick(shares, 1, 3), p)
	require.NoError(t, err)
	fromTwoThree, err := Combine(pick(shares, 2, 3), p)
	require.NoError(t, err)

	assert.Equal(t, 0, fromOneThree.Cmp(fromTwoThree))
	assert.Equal(t, 0, secret.Cmp(fromOneThree))
}

func TestCombine_BelowThresholdYieldsWrongValue(t *testing.T) {
	p := mustPrime(t, field.Exponent127)

	secret, shares, err := Split(seededReader(3), 4, 7, p)
	require.NoError(t, err)

	// Two or three shares of a degree-3 polynomial interpolate some other value
	for _, subset := range [][]Share{pick(shares, 1, 2), pick(shares, 2, 5, 7)} {
		recovered, err := Combine(subset, p)
		require.NoError(t, err)
		assert.NotEqual(t, 0, secret.Cmp(recovered))
	}
}

func TestCombine_InsufficientShares(t *testing.T) {
	p := mustPrime(t, field.Exponent89)

	_, shares, err := Split(nil, 3, 5, p)
	require.NoError(t, err)

	_, err = Combine(nil, p)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = Combine(shares[:1], p)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = CombineThreshold(shares[:2], 3, p)
	require.ErrorIs(t, err, ErrInsufficientShares)

	var insufficient *InsufficientSharesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Have)
	assert.Equal(t, 3, insufficient.Threshold)
	assert.Contains(t, err.Error(), "have 2, need 3")
}

func TestCombine_DuplicateIndex(t *testing.T) {
	p := mustPrime(t, field.Exponent89)

	_, shares, err := Split(nil, 2, 3, p)
	require.NoError(t, err)

	_, err = Combine([]Share{shares[0], shares[1], shares[0]}, p)
	assert.ErrorIs(t, err, ErrDuplicateIndex)
	assert.ErrorIs(t, err, ErrInvalidShare)
}

func TestCombine_InvalidShare(t *testing.T) {
	p := mustPrime(t, field.Exponent89)

	tests := []struct {
		name  string
		share Share
	}{
		{"zero index", Share{Index: 0, Value: big.NewInt(1)}},
		{"negative index", Share{Index: -1, Value: big.NewInt(1)}},
		{"nil value", Share{Index: 2}},
		{"negative value", Share{Index: 2, Value: big.NewInt(-1)}},
		{"value equals prime", Share{Index: 2, Value: new(big.Int).Set(p)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := Share{Index: 1, Value: big.NewInt(5)}
			_, err := Combine([]Share{valid, tt.share}, p)
			assert.ErrorIs(t, err, ErrInvalidShare)
		})
	}
}

func TestCombine_TamperedShare(t *testing.T) {
	p := mustPrime(t, field.Exponent107)

	secret, shares, err := Split(nil, 3, 5, p)
	require.NoError(t, err)

	subset := pick(shares, 1, 2, 4)
	subset[0] = Share{Index: subset[0].Index, Value: subset[1].Value}

	recovered, err := Combine(subset, p)
	require.NoError(t, err)
	assert.NotEqual(t, 0, secret.Cmp(recovered))
}

func TestEvaluatePolynomial(t *testing.T) {
	p := big.NewInt(97)
	// 3 + 2x + x^2
	coeffs := []*big.Int{big.NewInt(3), big.NewInt(2), big.NewInt(1)}

	assert.Equal(t, int64(3), evaluatePolynomial(coeffs, big.NewInt(0), p).Int64())
	assert.Equal(t, int64(6), evaluatePolynomial(coeffs, big.NewInt(1), p).Int64())
	assert.Equal(t, int64(38), evaluatePolynomial(coeffs, big.NewInt(5), p).Int64())
	// 3 + 20 + 100 = 123 mod 97 = 26
	assert.Equal(t, int64(26), evaluatePolynomial(coeffs, big.NewInt(10), p).Int64())
	assert.Equal(t, int64(0), evaluatePolynomial(nil, big.NewInt(10), p).Int64())
}

func TestValidateParameters(t *testing.T) {
	assert.NoError(t, ValidateParameters(4, 18))
	assert.ErrorIs(t, ValidateParameters(19, 18), ErrInvalidParameters)
	assert.ErrorIs(t, ValidateParameters(4, 21), ErrInvalidParameters)
	assert.ErrorIs(t, ValidateParameters(0, 3), ErrInvalidParameters)
}
