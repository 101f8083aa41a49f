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
	"encoding/json"
	"fmt"
	"math/big"
)

// Share is a single point (Index, Value) on the secret-encoding polynomial.
// Index is the evaluation point (1 to N) and Value the polynomial evaluated
// at that point, reduced modulo the field prime.
type Share struct {
	// Index is the share number (1 to N)
	Index int

	// Value is the polynomial value at Index
	Value *big.Int
}

// EncodedShare is the transport form of a share: the index in the clear and
// the value encoded with EncodeValue. It is the shape shares take in JSON
// bodies and CLI input.
type EncodedShare struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

// NewShare creates a share holding a copy of value.
func NewShare(index int, value *big.Int) Share {
	return Share{Index: index, Value: new(big.Int).Set(value)}
}

// Encoded returns the transport form of the share.
func (s Share) Encoded() EncodedShare {
	return EncodedShare{Index: s.Index, Value: EncodeValue(s.Value)}
}

// Decode converts the transport form back into a share.
func (e EncodedShare) Decode() (Share, error) {
	if e.Index < 1 {
		return Share{}, fmt.Errorf("%w: index %d (must be >= 1)", ErrMalformedShare, e.Index)
	}
	v, err := DecodeValue(e.Value)
	if err != nil {
		return Share{}, err
	}
	return Share{Index: e.Index, Value: v}, nil
}

// MarshalJSON implements json.Marshaler for Share
func (s Share) MarshalJSON() ([]byte, error) {
	if s.Value == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidShare)
	}
	return json.Marshal(s.Encoded())
}

// UnmarshalJSON implements json.Unmarshaler for Share
func (s *Share) UnmarshalJSON(data []byte) error {
	var aux EncodedShare
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	decoded, err := aux.Decode()
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// String returns a string representation of the share (for debugging).
// The value is truncated so logs never carry a full share.
func (s Share) String() string {
	v := "<nil>"
	if s.Value != nil {
		v = EncodeValue(s.Value)
		v = v[:min(len(v), 8)] + "..."
	}
	return fmt.Sprintf("Share{Index: %d, Value: %s}", s.Index, v)
}

// Validate checks the share against the field prime p.
func (s Share) Validate(p *big.Int) error {
	if s.Index < 1 {
		return fmt.Errorf("%w: index %d (must be >= 1)", ErrInvalidShare, s.Index)
	}
	if s.Value == nil {
		return fmt.Errorf("%w: share %d has no value", ErrInvalidShare, s.Index)
	}
	if s.Value.Sign() < 0 || (p != nil && s.Value.Cmp(p) >= 0) {
		return fmt.Errorf("%w: share %d value outside the field", ErrInvalidShare, s.Index)
	}
	return nil
}

// Indices returns the share indices in order.
func Indices(shares []Share) []int {
	idx := make([]int, len(shares))
	for i, s := range shares {
		idx[i] = s.Index
	}
	return idx
}
