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
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/jeremyhahn/go-sharelock/pkg/adapters/audit"
)

// APIKeyHeader is the alternative to a bearer token.
const APIKeyHeader = "X-API-Key"

var errNoCredentials = errors.New("no API key presented")

// apiKeyAuthenticator maps API keys to subjects. Keys are compared as
// SHA-256 digests in constant time.
type apiKeyAuthenticator struct {
	keys map[[sha256.Size]byte]string
}

func newAPIKeyAuthenticator(keys map[string]string) *apiKeyAuthenticator {
	a := &apiKeyAuthenticator{keys: make(map[[sha256.Size]byte]string, len(keys))}
	for key, subject := range keys {
		a.keys[sha256.Sum256([]byte(key))] = subject
	}
	return a
}

// authenticate returns the subject of the presented key.
func (a *apiKeyAuthenticator) authenticate(r *http.Request) (string, error) {
	presented := r.Header.Get(APIKeyHeader)
	if presented == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			presented = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if presented == "" {
		return "", errNoCredentials
	}

	digest := sha256.Sum256([]byte(presented))
	var subject string
	for known, s := range a.keys {
		if subtle.ConstantTimeCompare(known[:], digest[:]) == 1 {
			subject = s
		}
	}
	if subject == "" {
		return "", errors.New("unknown API key")
	}
	return subject, nil
}

// withSubject makes subject the audit principal of everything the
// request does.
func withSubject(ctx context.Context, subject string) context.Context {
	return audit.WithPrincipal(ctx, subject)
}

// Subject returns the authenticated subject, or "anonymous".
func Subject(ctx context.Context) string {
	return audit.PrincipalFromContext(ctx)
}
