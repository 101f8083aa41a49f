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

package rest

import (
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/scheme"
	"github.com/jeremyhahn/go-sharelock/pkg/health"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
)

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// HealthCheckResponse represents the response for probe endpoints.
type HealthCheckResponse struct {
	Status  health.Status        `json:"status"`
	Message string               `json:"message,omitempty"`
	Checks  []health.CheckResult `json:"checks,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// SchemeInfo is the public view of a scheme record.
type SchemeInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FieldExponent int       `json:"field_exponent"`
	K             int       `json:"k"`
	N             int       `json:"n"`
	Difference    int       `json:"difference"`
	Commitment    string    `json:"commitment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func schemeInfo(rec *scheme.Record) SchemeInfo {
	return SchemeInfo{
		ID:            rec.ID,
		Name:          rec.Name,
		FieldExponent: rec.FieldExponent,
		K:             rec.K,
		N:             rec.N,
		Difference:    rec.Difference(),
		Commitment:    rec.Commitment,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// CreateSchemeRequest represents a scheme creation request.
type CreateSchemeRequest struct {
	Name          string `json:"name"`
	FieldExponent int    `json:"field_exponent"`
	K             int    `json:"k"`
	N             int    `json:"n"`
}

// SharesResponse returns a scheme together with freshly issued shares.
// Shares are never returned again after this response.
type SharesResponse struct {
	Scheme  SchemeInfo            `json:"scheme"`
	Shares  []shamir.EncodedShare `json:"shares"`
	Encoded []string              `json:"encoded"`
}

// ListSchemesResponse represents the response for listing schemes.
type ListSchemesResponse struct {
	Schemes []SchemeInfo `json:"schemes"`
}

// SharesRequest carries shares in either transport form. Both lists are
// combined.
type SharesRequest struct {
	Shares  []shamir.EncodedShare `json:"shares,omitempty"`
	Encoded []string              `json:"encoded,omitempty"`
}

// decode converts the request shares, object form first.
func (r SharesRequest) decode() ([]shamir.Share, error) {
	if len(r.Shares) == 0 && len(r.Encoded) == 0 {
		return nil, ErrMissingShares
	}
	shares, err := shamir.DecodeShares(r.Shares)
	if err != nil {
		return nil, err
	}
	for _, s := range r.Encoded {
		share, err := shamir.DecodeShare(s)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, nil
}

// VerifyResponse reports the outcome of a successful verification.
type VerifyResponse struct {
	Valid   bool  `json:"valid"`
	Indices []int `json:"indices"`
}

// AssetInfo is the public view of an asset link.
type AssetInfo struct {
	ID          string    `json:"id"`
	SchemeID    string    `json:"scheme_id"`
	Path        string    `json:"path"`
	EncryptedAt time.Time `json:"encrypted_at"`
}

func assetInfo(a *scheme.Asset) AssetInfo {
	return AssetInfo{ID: a.ID, SchemeID: a.SchemeID, Path: a.Path, EncryptedAt: a.EncryptedAt}
}

// ListAssetsResponse represents the response for listing a scheme's assets.
type ListAssetsResponse struct {
	Assets []AssetInfo `json:"assets"`
}

// EncryptAssetRequest represents an asset encryption request.
type EncryptAssetRequest struct {
	SharesRequest
	Path     string `json:"path"`
	SchemeID string `json:"scheme_id"`
}

// DecryptAssetRequest represents an asset decryption request. Path is
// optional and must match the linked path when given.
type DecryptAssetRequest struct {
	SharesRequest
	Path string `json:"path,omitempty"`
}

// DecryptAssetResponse reports where the plaintext was written.
type DecryptAssetResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// SuccessResponse represents a generic success response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
