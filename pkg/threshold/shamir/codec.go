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
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// shareSeparator splits the index from the encoded value in the single
// string form "<index>-<value>". The standard base64 alphabet never
// contains '-', so the first separator is unambiguous.
const shareSeparator = "-"

// EncodeValue serializes a share value for transport through text fields:
// the canonical decimal representation (no sign, no leading zeros) encoded
// with standard base64.
func EncodeValue(v *big.Int) string {
	return base64.StdEncoding.EncodeToString([]byte(v.Text(10)))
}

// EncodeValueStrict is EncodeValue for values that did not come out of
// Split: nil and negative values are rejected with ErrInvalidShare.
func EncodeValueStrict(v *big.Int) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: nil value", ErrInvalidShare)
	}
	if v.Sign() < 0 {
		return "", fmt.Errorf("%w: negative value", ErrInvalidShare)
	}
	return EncodeValue(v), nil
}

// DecodeValue reverses EncodeValue. Invalid base64, an empty payload, or a
// payload that is not a canonical non-negative decimal integer yields
// ErrMalformedShare. The decoded value must re-encode to exactly s.
func DecodeValue(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrMalformedShare)
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedShare, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedShare)
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: non-numeric payload", ErrMalformedShare)
		}
	}

	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("%w: non-numeric payload", ErrMalformedShare)
	}
	if EncodeValue(v) != s {
		return nil, fmt.Errorf("%w: non-canonical encoding", ErrMalformedShare)
	}
	return v, nil
}

// EncodeShare renders a share as a single "<index>-<value>" string.
func EncodeShare(s Share) string {
	return strconv.Itoa(s.Index) + shareSeparator + EncodeValue(s.Value)
}

// DecodeShare parses the single-string share form produced by EncodeShare.
func DecodeShare(s string) (Share, error) {
	idx, val, ok := strings.Cut(strings.TrimSpace(s), shareSeparator)
	if !ok {
		return Share{}, fmt.Errorf("%w: missing index separator", ErrMalformedShare)
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return Share{}, fmt.Errorf("%w: invalid index %q", ErrMalformedShare, idx)
	}
	return EncodedShare{Index: index, Value: val}.Decode()
}

// EncodeShares converts shares into their transport form.
func EncodeShares(shares []Share) []EncodedShare {
	out := make([]EncodedShare, len(shares))
	for i, s := range shares {
		out[i] = s.Encoded()
	}
	return out
}

// DecodeShares converts transport-form shares back into shares, stopping
// at the first malformed entry.
func DecodeShares(encoded []EncodedShare) ([]Share, error) {
	out := make([]Share, len(encoded))
	for i, e := range encoded {
		s, err := e.Decode()
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
