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

// Package logger defines the structured logging interface used across
// go-sharelock and adapters for log/slog and go.uber.org/zap.
//
// Share values and secrets must never be passed as fields. As a backstop
// both adapters replace the value of any field whose key names secret
// material (see IsSensitiveKey) with Redacted.
package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/correlation"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelFatal logs and exits the process
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < LevelDebug || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a configuration string such as "debug" or "WARN"
// to a Level. The empty string is LevelInfo; "warning" is accepted.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "WARNING":
		return LevelWarn, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the interface for logging adapters
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// Fatal logs and exits the program
	Fatal(msg string, fields ...Field)

	// With creates a child logger carrying fields on every entry
	With(fields ...Field) Logger

	WithError(err error) Logger
}

// WithContext returns l annotated with the correlation ID carried by ctx,
// or l itself when there is none.
func WithContext(ctx context.Context, l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	if id := correlation.GetCorrelationID(ctx); id != "" {
		return l.With(String("correlation_id", id))
	}
	return l
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Error creates the conventional "error" field
func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

func Ints(key string, values []int) Field {
	return Field{Key: key, Value: values}
}

// SchemeID, AssetID and ShareIndices name the identifiers every scheme and
// asset log line carries, so both adapters emit the same keys.
func SchemeID(id string) Field { return String("scheme_id", id) }

func AssetID(id string) Field { return String("asset_id", id) }

// ShareIndices records which shares took part in an operation. Indices
// are public; share values never are.
func ShareIndices(indices []int) Field { return Ints("shares", indices) }

// Redacted replaces the value of sensitive fields.
const Redacted = "[REDACTED]"

var sensitiveKeys = []string{"secret", "share_value", "password", "api_key", "token", "commitment_key"}

// IsSensitiveKey reports whether a field key names secret material. The
// match is case-insensitive on the key's suffix, so "raw_secret" and
// "X-API-Key" style keys are caught too.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	for _, s := range sensitiveKeys {
		if strings.HasSuffix(k, s) {
			return true
		}
	}
	return false
}

func redact(f Field) Field {
	if IsSensitiveKey(f.Key) {
		return Field{Key: f.Key, Value: Redacted}
	}
	return f
}
