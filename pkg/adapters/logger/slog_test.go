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
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/correlation"
)

func newJSONAdapter(buf *bytes.Buffer, level Level) *SlogAdapter {
	return NewSlogAdapter(&SlogConfig{Format: "json", Output: buf, Level: level})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNewSlogAdapter_NilConfig(t *testing.T) {
	if NewSlogAdapter(nil) == nil {
		t.Fatal("expected adapter")
	}
}

func TestNewSlogAdapter_ExistingLogger(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(&SlogConfig{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	adapter.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelDebug)

	adapter.Debug("d")
	adapter.Info("i")
	adapter.Warn("w")
	adapter.Error("e")

	lines := decodeLines(t, &buf)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	want := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, line := range lines {
		if line["level"] != want[i] {
			t.Errorf("line %d level = %v, want %v", i, line["level"], want[i])
		}
	}
}

func TestSlogAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelWarn)

	adapter.Debug("hidden")
	adapter.Info("hidden")
	adapter.Warn("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestSlogAdapter_With_NoDuplicateFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelInfo)

	child := adapter.With(String("component", "engine")).With(Int("k", 3))
	child.Info("split", String("op", "generate"))

	out := buf.String()
	if strings.Count(out, `"component"`) != 1 {
		t.Errorf("component field repeated: %s", out)
	}

	line := decodeLines(t, &buf)[0]
	if line["component"] != "engine" || line["op"] != "generate" || line["k"] != float64(3) {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestSlogAdapter_WithError(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelInfo)

	adapter.WithError(errors.New("disk full")).Error("write failed")

	line := decodeLines(t, &buf)[0]
	if line["error"] != "disk full" {
		t.Errorf("error field = %v", line["error"])
	}
}

func TestSlogAdapter_FieldTypes(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelInfo)

	adapter.Info("types",
		String("s", "v"),
		Int("i", 1),
		Bool("b", true),
		Duration("d", 2*time.Second),
		ShareIndices([]int{1, 3}),
		Any("meta", map[string]int{"k": 2}),
	)

	line := decodeLines(t, &buf)[0]
	if line["s"] != "v" || line["b"] != true || line["i"] != float64(1) {
		t.Errorf("unexpected fields: %v", line)
	}
	if shares, ok := line["shares"].([]interface{}); !ok || len(shares) != 2 {
		t.Errorf("shares not encoded as array: %v", line["shares"])
	}
}

func TestSlogAdapter_Redacts(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelInfo)

	adapter.With(String("api_key", "k1")).Info("oops", String("secret", "1234567"), SchemeID("s1"))

	out := buf.String()
	if strings.Contains(out, "1234567") || strings.Contains(out, "k1") {
		t.Fatalf("secret material logged: %s", out)
	}
	line := decodeLines(t, &buf)[0]
	if line["secret"] != Redacted || line["api_key"] != Redacted || line["scheme_id"] != "s1" {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestSlogAdapter_CorrelationViaWithContext(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelInfo)

	ctx := correlation.WithCorrelationID(context.Background(), "req-7")
	WithContext(ctx, adapter).Info("annotated")
	WithContext(context.Background(), adapter).Error("plain")

	lines := decodeLines(t, &buf)
	if lines[0]["correlation_id"] != "req-7" {
		t.Errorf("missing correlation id: %v", lines[0])
	}
	if _, ok := lines[1]["correlation_id"]; ok {
		t.Errorf("unexpected correlation id: %v", lines[1])
	}
}

func TestSlogAdapter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(&SlogConfig{Output: &buf})
	adapter.Info("plain", String("scheme", "abc"))
	if !strings.Contains(buf.String(), "scheme=abc") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}
