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
	"log"
	"net/http"

	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrMissingShares  = errors.New("missing shares")
	ErrMissingPath    = errors.New("missing path")
	ErrMissingScheme  = errors.New("missing scheme_id")
	ErrInternalError  = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
)

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error: err.Error(),
		Type:  sharelock.ErrorType(err),
		Code:  statusCode,
	}, statusCode)
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// mapErrorToStatusCode maps errors to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrMissingShares),
		errors.Is(err, ErrMissingPath),
		errors.Is(err, ErrMissingScheme),
		errors.Is(err, sharelock.ErrInvalidParameters),
		errors.Is(err, sharelock.ErrInsufficientShares),
		errors.Is(err, sharelock.ErrInvalidShare),
		errors.Is(err, sharelock.ErrMalformedShare),
		errors.Is(err, sharelock.ErrMalformedCommitment):
		return http.StatusBadRequest
	case errors.Is(err, sharelock.ErrCommitmentMismatch):
		return http.StatusForbidden
	case errors.Is(err, sharelock.ErrSchemeNotFound),
		errors.Is(err, sharelock.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, sharelock.ErrSchemeInUse),
		errors.Is(err, sharelock.ErrAlreadyEncrypted),
		errors.Is(err, sharelock.ErrNotEncrypted):
		return http.StatusConflict
	case errors.Is(err, sharelock.ErrAuthenticationFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleError maps the error to a status code and writes the response.
// Internal errors are not echoed to the client.
func handleError(w http.ResponseWriter, err error) {
	statusCode := mapErrorToStatusCode(err)
	if statusCode == http.StatusInternalServerError {
		writeErrorWithMessage(w, ErrInternalError, "An unexpected error occurred", statusCode)
		return
	}
	writeError(w, err, statusCode)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}
