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

// Package rest serves the sharelock HTTP API.
//
// The API manages sharing schemes and the assets they protect:
//
//	POST   /api/v1/schemes               create a scheme, returns its shares once
//	GET    /api/v1/schemes               list schemes
//	GET    /api/v1/schemes/{id}          show a scheme
//	DELETE /api/v1/schemes/{id}          delete an unused scheme
//	POST   /api/v1/schemes/{id}/refresh  issue new shares for an unused scheme
//	POST   /api/v1/schemes/{id}/verify   check shares against the commitment
//	GET    /api/v1/schemes/{id}/assets   list assets encrypted under a scheme
//	GET    /api/v1/assets/{id}           show an asset link
//	POST   /api/v1/assets/{id}/encrypt   encrypt a file under a scheme
//	POST   /api/v1/assets/{id}/decrypt   decrypt a linked asset
//	DELETE /api/v1/assets/{id}           unlink an asset without touching files
//
// Shares travel as {"index": 1, "value": "<base64>"} objects or in the
// single-string form "1-<base64>".
//
// Health probes are served at /health, /health/live, /health/ready and
// /health/startup, and Prometheus metrics at /metrics. When API keys are
// configured, /api routes require "Authorization: Bearer <key>" or an
// X-API-Key header.
//
// Errors are JSON bodies of the form {"error": "...", "code": 400}.
package rest
