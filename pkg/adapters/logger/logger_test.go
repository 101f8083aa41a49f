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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/correlation"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
		{Level(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.level.String(); result != tt.expected {
				t.Errorf("Level.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldConstructors(t *testing.T) {
	err := errors.New("boom")

	tests := []struct {
		name  string
		field Field
		key   string
		value interface{}
	}{
		{"String", String("k", "v"), "k", "v"},
		{"Int", Int("count", 42), "count", 42},
		{"Bool", Bool("ok", true), "ok", true},
		{"Duration", Duration("took", time.Second), "took", time.Second},
		{"Error", Error(err), "error", err},
		{"Any", Any("x", struct{}{}), "x", struct{}{}},
		{"SchemeID", SchemeID("s1"), "scheme_id", "s1"},
		{"AssetID", AssetID("a1"), "asset_id", "a1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key {
				t.Errorf("Key = %v, want %v", tt.field.Key, tt.key)
			}
			if tt.field.Value != tt.value {
				t.Errorf("Value = %v, want %v", tt.field.Value, tt.value)
			}
		})
	}

	if got := Ints("i", []int{1, 2}).Value.([]int); len(got) != 2 {
		t.Errorf("Ints value = %v", got)
	}
	if f := ShareIndices([]int{2, 5}); f.Key != "shares" || len(f.Value.([]int)) != 2 {
		t.Errorf("ShareIndices = %+v", f)
	}
}

func TestParseLevel_RoundTrip(t *testing.T) {
	for l := LevelDebug; l <= LevelFatal; l++ {
		got, err := ParseLevel(l.String())
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
	if Level(-1).String() != "UNKNOWN" {
		t.Error("negative level should be UNKNOWN")
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for _, key := range []string{"secret", "raw_secret", "share_value", "API_KEY", "X-API-Key", "password", "fernet_token"} {
		if !IsSensitiveKey(key) {
			t.Errorf("%q should be sensitive", key)
		}
	}
	for _, key := range []string{"scheme_id", "asset_id", "shares", "correlation_id", "path", "secretary"} {
		if IsSensitiveKey(key) {
			t.Errorf("%q should not be sensitive", key)
		}
	}
	if f := redact(String("secret", "42")); f.Value != Redacted {
		t.Errorf("redact = %+v", f)
	}
	if f := redact(Int("k", 3)); f.Value != 3 {
		t.Errorf("redact changed a public field: %+v", f)
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewSlogAdapter(&SlogConfig{Format: "json", Output: &buf})

	ctx := correlation.WithCorrelationID(context.Background(), "corr-42")
	WithContext(ctx, base).Info("annotated")
	if !bytes.Contains(buf.Bytes(), []byte(`"correlation_id":"corr-42"`)) {
		t.Errorf("expected correlation id in output, got %s", buf.String())
	}

	if got := WithContext(context.Background(), base); got != Logger(base) {
		t.Error("expected the same logger without a correlation id")
	}

	if WithContext(ctx, nil) == nil {
		t.Error("expected a nop logger for nil input")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("d")
	l.Info("i", String("k", "v"))
	l.Warn("w")
	l.Error("e")
	l.Fatal("does not exit")
	if l.With(String("k", "v")) == nil || l.WithError(errors.New("x")) == nil {
		t.Error("nop logger children must not be nil")
	}
}
