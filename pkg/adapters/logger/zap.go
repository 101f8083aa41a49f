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

package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter wraps a zap.Logger to implement the Logger interface
type ZapAdapter struct {
	logger *zap.Logger
}

// ZapConfig configures the zap adapter
type ZapConfig struct {
	// Logger is used as-is when set
	Logger *zap.Logger

	// Level is the minimum log level to output
	Level Level

	// Production selects JSON output with ISO8601 timestamps; otherwise
	// the console encoder with capitalized levels is used
	Production bool

	// OutputPaths defaults to stderr
	OutputPaths []string
}

// NewZapAdapter builds a zap logger from config
func NewZapAdapter(config *ZapConfig) (*ZapAdapter, error) {
	if config == nil {
		config = &ZapConfig{}
	}
	if config.Logger != nil {
		return &ZapAdapter{logger: config.Logger}, nil
	}

	var zc zap.Config
	if config.Production {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(levelToZapLevel(config.Level))
	if len(config.OutputPaths) > 0 {
		zc.OutputPaths = config.OutputPaths
	}

	// Skip the adapter frame so callers are reported
	l, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &ZapAdapter{logger: l}, nil
}

// Debug logs a debug message
func (z *ZapAdapter) Debug(msg string, fields ...Field) {
	z.logger.Debug(msg, toZapFields(fields)...)
}

// Info logs an informational message
func (z *ZapAdapter) Info(msg string, fields ...Field) {
	z.logger.Info(msg, toZapFields(fields)...)
}

// Warn logs a warning message
func (z *ZapAdapter) Warn(msg string, fields ...Field) {
	z.logger.Warn(msg, toZapFields(fields)...)
}

// Error logs an error message
func (z *ZapAdapter) Error(msg string, fields ...Field) {
	z.logger.Error(msg, toZapFields(fields)...)
}

// Fatal logs a fatal message and exits
func (z *ZapAdapter) Fatal(msg string, fields ...Field) {
	z.logger.Fatal(msg, toZapFields(fields)...)
}

// With creates a child logger with the given fields
func (z *ZapAdapter) With(fields ...Field) Logger {
	return &ZapAdapter{logger: z.logger.With(toZapFields(fields)...)}
}

// WithError creates a child logger with an error field
func (z *ZapAdapter) WithError(err error) Logger {
	return z.With(Error(err))
}

// Sync flushes any buffered log entries
func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		f = redact(f)
		switch v := f.Value.(type) {
		case string:
			out = append(out, zap.String(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case bool:
			out = append(out, zap.Bool(f.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		case []int:
			out = append(out, zap.Ints(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

func levelToZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
