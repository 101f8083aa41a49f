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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMemoryCapacity bounds MemoryAuditAdapter when no capacity is given.
const DefaultMemoryCapacity = 10000

// MemoryAuditAdapter keeps the most recent events in memory. Once full,
// the oldest event is evicted for each new one.
//
// Note: All events are lost on process restart.
type MemoryAuditAdapter struct {
	mu       sync.RWMutex
	events   []*AuditEvent
	byID     map[string]*AuditEvent
	capacity int
}

// NewMemoryAuditAdapter creates an in-memory adapter holding at most
// capacity events. A capacity below one uses DefaultMemoryCapacity.
func NewMemoryAuditAdapter(capacity int) *MemoryAuditAdapter {
	if capacity < 1 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryAuditAdapter{
		events:   make([]*AuditEvent, 0, min(capacity, 1024)),
		byID:     make(map[string]*AuditEvent),
		capacity: capacity,
	}
}

// LogEvent records an audit event in memory
func (m *MemoryAuditAdapter) LogEvent(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == m.capacity {
		delete(m.byID, m.events[0].ID)
		m.events[0] = nil
		m.events = m.events[1:]
	}
	m.events = append(m.events, event)
	m.byID[event.ID] = event
	return nil
}

// GetEvents returns events matching query, newest first.
func (m *MemoryAuditAdapter) GetEvents(ctx context.Context, query *EventQuery) ([]*AuditEvent, error) {
	if query == nil {
		query = &EventQuery{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if query.Limit > 0 && len(results) == query.Limit {
			break
		}
		if matchesQuery(m.events[i], query) {
			results = append(results, m.events[i])
		}
	}
	return results, nil
}

// GetEvent retrieves a specific audit event by ID
func (m *MemoryAuditAdapter) GetEvent(ctx context.Context, eventID string) (*AuditEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.byID[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	return event, nil
}

// Len reports the number of retained events.
func (m *MemoryAuditAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func matchesQuery(event *AuditEvent, query *EventQuery) bool {
	if len(query.EventTypes) > 0 && !contains(query.EventTypes, event.EventType) {
		return false
	}
	if len(query.Outcomes) > 0 && !contains(query.Outcomes, event.Outcome) {
		return false
	}
	if query.Principal != "" && event.Principal != query.Principal {
		return false
	}
	if query.ResourceID != "" && (event.Resource == nil || event.Resource.ID != query.ResourceID) {
		return false
	}
	if query.RequestID != "" && event.RequestID != query.RequestID {
		return false
	}
	if query.StartTime != nil && event.Timestamp.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && event.Timestamp.After(*query.EndTime) {
		return false
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
