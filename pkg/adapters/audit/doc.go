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

/*
Package audit records who did what to which scheme or asset.

The scheme manager emits one AuditEvent per lifecycle operation:

  - scheme.create, scheme.refresh, scheme.delete
  - shares.verify
  - asset.encrypt, asset.decrypt, asset.unlink

and the REST layer adds auth.failure for rejected API keys. Failed share
checks are recorded with OutcomeDenied so repeated guessing is visible.

# Implementations

MemoryAuditAdapter keeps a bounded, queryable history in process.
LoggerAuditAdapter writes each event as a structured log line through the
logger adapter, which is how the daemon ships its audit trail.
NopAuditAdapter discards everything.

# Principals

The acting principal travels in the request context:

	ctx = audit.WithPrincipal(ctx, "ops-team")
	mgr.Verify(ctx, schemeID, shares) // recorded with principal "ops-team"
*/
package audit
