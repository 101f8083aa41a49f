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
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
)

// LoggerAuditAdapter writes events as structured log lines.
type LoggerAuditAdapter struct {
	logger logger.Logger
}

// NewLoggerAuditAdapter returns an adapter logging through l under the
// "audit" component.
func NewLoggerAuditAdapter(l logger.Logger) *LoggerAuditAdapter {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &LoggerAuditAdapter{logger: l.With(logger.String("component", "audit"))}
}

// LogEvent implements AuditAdapter.
func (a *LoggerAuditAdapter) LogEvent(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	fields := []logger.Field{
		logger.String("event_id", event.ID),
		logger.String("event_type", string(event.EventType)),
		logger.String("outcome", string(event.Outcome)),
		logger.String("principal", event.Principal),
		logger.String("timestamp", event.Timestamp.Format(time.RFC3339Nano)),
	}
	if event.Resource != nil {
		fields = append(fields,
			logger.String("resource_type", event.Resource.Type),
			logger.String("resource_id", event.Resource.ID))
	}
	if event.Result != "" {
		fields = append(fields, logger.String("result", event.Result))
	}
	if event.RequestID != "" {
		fields = append(fields, logger.String("correlation_id", event.RequestID))
	}
	for k, v := range event.Metadata {
		fields = append(fields, logger.Any(k, v))
	}

	switch event.Severity {
	case SeverityError:
		a.logger.Error("audit", fields...)
	case SeverityWarn:
		a.logger.Warn("audit", fields...)
	default:
		a.logger.Info("audit", fields...)
	}
	return nil
}
