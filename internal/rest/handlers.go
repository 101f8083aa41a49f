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
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-sharelock/pkg/health"
	"github.com/jeremyhahn/go-sharelock/pkg/scheme"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
)

// maxBodyBytes bounds request bodies. Share sets are small.
const maxBodyBytes = 1 << 20

// HandlerContext holds dependencies for REST handlers.
type HandlerContext struct {
	// Version is the build version reported by /health
	Version string
	// Manager owns schemes and asset links
	Manager *scheme.Manager
	// HealthChecker manages health check probes
	HealthChecker HealthChecker
}

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// NewHandlerContext creates a new handler context.
func NewHandlerContext(manager *scheme.Manager, version string) *HandlerContext {
	return &HandlerContext{
		Version: version,
		Manager: manager,
	}
}

// SetHealthChecker sets the health checker for the handler context.
func (h *HandlerContext) SetHealthChecker(checker HealthChecker) {
	h.HealthChecker = checker
}

// HealthHandler handles GET /health requests.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "healthy", Version: h.Version}, http.StatusOK)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func sharesResponse(rec *scheme.Record, shares []shamir.Share) SharesResponse {
	encoded := make([]string, len(shares))
	for i, s := range shares {
		encoded[i] = shamir.EncodeShare(s)
	}
	return SharesResponse{
		Scheme:  schemeInfo(rec),
		Shares:  shamir.EncodeShares(shares),
		Encoded: encoded,
	}
}

// CreateSchemeHandler handles POST /api/v1/schemes.
func (h *HandlerContext) CreateSchemeHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSchemeRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	rec, shares, err := h.Manager.Create(r.Context(), req.Name, req.FieldExponent, req.K, req.N)
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, sharesResponse(rec, shares), http.StatusCreated)
}

// ListSchemesHandler handles GET /api/v1/schemes.
func (h *HandlerContext) ListSchemesHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Manager.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	resp := ListSchemesResponse{Schemes: make([]SchemeInfo, 0, len(recs))}
	for _, rec := range recs {
		resp.Schemes = append(resp.Schemes, schemeInfo(rec))
	}
	writeJSON(w, resp, http.StatusOK)
}

// GetSchemeHandler handles GET /api/v1/schemes/{id}.
func (h *HandlerContext) GetSchemeHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, schemeInfo(rec), http.StatusOK)
}

// DeleteSchemeHandler handles DELETE /api/v1/schemes/{id}.
func (h *HandlerContext) DeleteSchemeHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Manager.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, SuccessResponse{Success: true, Message: fmt.Sprintf("scheme %s deleted", id)}, http.StatusOK)
}

// RefreshSchemeHandler handles POST /api/v1/schemes/{id}/refresh.
func (h *HandlerContext) RefreshSchemeHandler(w http.ResponseWriter, r *http.Request) {
	rec, shares, err := h.Manager.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, sharesResponse(rec, shares), http.StatusOK)
}

// VerifySharesHandler handles POST /api/v1/schemes/{id}/verify. A wrong
// share set answers 403 rather than valid=false.
func (h *HandlerContext) VerifySharesHandler(w http.ResponseWriter, r *http.Request) {
	var req SharesRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	shares, err := req.decode()
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.Manager.Verify(r.Context(), chi.URLParam(r, "id"), shares); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, VerifyResponse{Valid: true, Indices: shamir.Indices(shares)}, http.StatusOK)
}

// SchemeAssetsHandler handles GET /api/v1/schemes/{id}/assets.
func (h *HandlerContext) SchemeAssetsHandler(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Manager.Assets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	resp := ListAssetsResponse{Assets: make([]AssetInfo, 0, len(assets))}
	for _, a := range assets {
		resp.Assets = append(resp.Assets, assetInfo(a))
	}
	writeJSON(w, resp, http.StatusOK)
}

// GetAssetHandler handles GET /api/v1/assets/{id}.
func (h *HandlerContext) GetAssetHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.Manager.Asset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, assetInfo(a), http.StatusOK)
}

// EncryptAssetHandler handles POST /api/v1/assets/{id}/encrypt.
func (h *HandlerContext) EncryptAssetHandler(w http.ResponseWriter, r *http.Request) {
	var req EncryptAssetRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.Path == "" {
		handleError(w, ErrMissingPath)
		return
	}
	if req.SchemeID == "" {
		handleError(w, ErrMissingScheme)
		return
	}
	shares, err := req.decode()
	if err != nil {
		handleError(w, err)
		return
	}

	a, err := h.Manager.EncryptAsset(r.Context(), chi.URLParam(r, "id"), req.Path, req.SchemeID, shares)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, assetInfo(a), http.StatusOK)
}

// DecryptAssetHandler handles POST /api/v1/assets/{id}/decrypt.
func (h *HandlerContext) DecryptAssetHandler(w http.ResponseWriter, r *http.Request) {
	var req DecryptAssetRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	shares, err := req.decode()
	if err != nil {
		handleError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	path, err := h.Manager.DecryptAsset(r.Context(), id, req.Path, shares)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, DecryptAssetResponse{ID: id, Path: path}, http.StatusOK)
}

// UnlinkAssetHandler handles DELETE /api/v1/assets/{id}.
func (h *HandlerContext) UnlinkAssetHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Manager.Unlink(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, SuccessResponse{Success: true, Message: fmt.Sprintf("asset %s unlinked", id)}, http.StatusOK)
}
