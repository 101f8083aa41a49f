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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, fmt.Errorf("scheme x: %w", sharelock.ErrSchemeNotFound), http.StatusNotFound)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Type != "scheme_not_found" {
		t.Errorf("Expected type scheme_not_found, got %s", resp.Type)
	}
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected code %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestWriteErrorWithMessage(t *testing.T) {
	w := httptest.NewRecorder()

	writeErrorWithMessage(w, errors.New("test error"), "custom message", http.StatusInternalServerError)

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != "test error" || resp.Message != "custom message" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidRequest, http.StatusBadRequest},
		{ErrMissingShares, http.StatusBadRequest},
		{ErrMissingPath, http.StatusBadRequest},
		{ErrMissingScheme, http.StatusBadRequest},
		{sharelock.ErrInvalidParameters, http.StatusBadRequest},
		{&shamir.InsufficientSharesError{Have: 1, Threshold: 3}, http.StatusBadRequest},
		{shamir.ErrDuplicateIndex, http.StatusBadRequest},
		{sharelock.ErrMalformedShare, http.StatusBadRequest},
		{sharelock.ErrMalformedCommitment, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", sharelock.ErrCommitmentMismatch), http.StatusForbidden},
		{sharelock.ErrSchemeNotFound, http.StatusNotFound},
		{sharelock.ErrFileNotFound, http.StatusNotFound},
		{sharelock.ErrSchemeInUse, http.StatusConflict},
		{sharelock.ErrAlreadyEncrypted, http.StatusConflict},
		{sharelock.ErrNotEncrypted, http.StatusConflict},
		{sharelock.ErrAuthenticationFailure, http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := mapErrorToStatusCode(tt.err); got != tt.want {
			t.Errorf("mapErrorToStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHandleError_HidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	handleError(w, errors.New("open /var/lib/sharelock/secret: permission denied"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != ErrInternalError.Error() {
		t.Errorf("Expected generic error, got %q", resp.Error)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, SuccessResponse{Success: true, Message: "ok"}, http.StatusCreated)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	var resp SuccessResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.Message != "ok" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}
