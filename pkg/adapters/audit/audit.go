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

package audit

import (
	"context"
	"errors"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Scheme lifecycle events
	EventSchemeCreate  EventType = "scheme.create"
	EventSchemeRefresh EventType = "scheme.refresh"
	EventSchemeDelete  EventType = "scheme.delete"

	// Share events
	EventSharesVerify EventType = "shares.verify"

	// Asset events
	EventAssetEncrypt EventType = "asset.encrypt"
	EventAssetDecrypt EventType = "asset.decrypt"
	EventAssetUnlink  EventType = "asset.unlink"

	// Authentication events
	EventAuthFailure EventType = "auth.failure"
)

// EventSeverity indicates the importance level of an audit event
type EventSeverity string

const (
	SeverityInfo  EventSeverity = "info"
	SeverityWarn  EventSeverity = "warn"
	SeverityError EventSeverity = "error"
)

// EventOutcome indicates the result of an operation
type EventOutcome string

const (
	OutcomeSuccess EventOutcome = "success"
	OutcomeFailure EventOutcome = "failure"
	OutcomeDenied  EventOutcome = "denied"
)

// Resource types
const (
	ResourceScheme = "scheme"
	ResourceAsset  = "asset"
	ResourceAPI    = "api"
)

// ErrEventNotFound is returned by GetEvent for an unknown ID.
var ErrEventNotFound = errors.New("audit event not found")

// AuditEvent is a single audit log entry. Events never carry share
// values, secrets or keys.
type AuditEvent struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	EventType EventType     `json:"event_type"`
	Severity  EventSeverity `json:"severity"`
	Outcome   EventOutcome  `json:"outcome"`

	// Principal is the authenticated subject, or "anonymous"
	Principal string `json:"principal"`

	// Resource identifies what was accessed or modified
	Resource *Resource `json:"resource,omitempty"`

	// Result is the error classification of a failed operation
	Result string `json:"result,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// RequestID correlates this event with a request
	RequestID string `json:"request_id,omitempty"`
}

// Resource represents the target of an action
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// AuditAdapter records audit events.
//
// Implementations must be safe for concurrent use. A failed LogEvent is
// reported to the caller but never fails the audited operation.
type AuditAdapter interface {
	// LogEvent records an audit event, filling in ID and Timestamp when
	// they are empty
	LogEvent(ctx context.Context, event *AuditEvent) error
}

// Querier is implemented by adapters that retain events.
type Querier interface {
	// GetEvents returns events matching query, newest first
	GetEvents(ctx context.Context, query *EventQuery) ([]*AuditEvent, error)

	// GetEvent retrieves a specific audit event by ID
	GetEvent(ctx context.Context, eventID string) (*AuditEvent, error)
}

// EventQuery provides parameters for querying audit events
type EventQuery struct {
	EventTypes []EventType
	Outcomes   []EventOutcome

	Principal  string
	ResourceID string
	RequestID  string

	// StartTime and EndTime bound the event timestamp, inclusive
	StartTime *time.Time
	EndTime   *time.Time

	// Limit caps the number of results; zero means no limit
	Limit int
}

// NopAuditAdapter discards every event.
type NopAuditAdapter struct{}

// NewNopAuditAdapter returns an adapter that records nothing.
func NewNopAuditAdapter() *NopAuditAdapter {
	return &NopAuditAdapter{}
}

// LogEvent implements AuditAdapter.
func (NopAuditAdapter) LogEvent(context.Context, *AuditEvent) error {
	return nil
}
