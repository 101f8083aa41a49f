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

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/scheme"
	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
)

func testRecord() *scheme.Record {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &scheme.Record{
		ID:            "0b6f1c1e-3c55-4c1e-9a65-3c7f1f0f8a11",
		Name:          "payroll",
		FieldExponent: 127,
		K:             3,
		N:             5,
		Commitment:    "pbkdf2_sha256$100000$salt$hash",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestPrinter_PrintShares(t *testing.T) {
	shares := []shamir.Share{
		{Index: 1, Value: big.NewInt(12345)},
		{Index: 2, Value: big.NewInt(67890)},
	}

	var buf bytes.Buffer
	if err := NewPrinter("text", &buf).PrintShares(testRecord(), shares); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"payroll", "3 of 5", "1-MTIzNDU=", "any 3 of 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Refreshed") {
		t.Error("unrefreshed scheme should not print a refresh time")
	}

	buf.Reset()
	if err := NewPrinter("json", &buf).PrintShares(testRecord(), shares); err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["difference"] != float64(2) {
		t.Errorf("difference = %v, want 2", got["difference"])
	}
	if s, ok := got["shares"].([]interface{}); !ok || len(s) != 2 || s[1] != "2-Njc4OTA=" {
		t.Errorf("shares = %v", got["shares"])
	}
}

func TestPrinter_PrintSchemeList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	if err := p.PrintSchemeList(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No schemes found") {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if err := p.PrintSchemeList([]*scheme.Record{testRecord()}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "3/5") {
		t.Errorf("got %q", buf.String())
	}
}

func TestPrinter_PrintAsset(t *testing.T) {
	a := &scheme.Asset{ID: "a1", SchemeID: "s1", Path: "/srv/a.txt.enc", EncryptedAt: time.Unix(0, 0).UTC()}

	var buf bytes.Buffer
	if err := NewPrinter("json", &buf).PrintAsset(a); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\"path\": \"/srv/a.txt.enc\"") {
		t.Errorf("got %s", buf.String())
	}

	buf.Reset()
	if err := NewPrinter("text", &buf).PrintAssetList(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No assets found") {
		t.Errorf("got %q", buf.String())
	}
}

func TestPrinter_PrintError(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("verify: %w", sharelock.ErrCommitmentMismatch)
	if perr := NewPrinter("json", &buf).PrintError(err); perr != nil {
		t.Fatal(perr)
	}
	var got map[string]string
	if jerr := json.Unmarshal(buf.Bytes(), &got); jerr != nil {
		t.Fatal(jerr)
	}
	if got["type"] != "commitment_mismatch" {
		t.Errorf("type = %q", got["type"])
	}

	buf.Reset()
	_ = NewPrinter("json", &buf).PrintError(errors.New("boom"))
	if strings.Contains(buf.String(), "\"type\"") {
		t.Errorf("internal errors carry no type: %s", buf.String())
	}

	buf.Reset()
	_ = NewPrinter("text", &buf).PrintError(errors.New("boom"))
	if buf.String() != "Error: boom\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestPrinter_UnknownFormat(t *testing.T) {
	p := NewPrinter("xml", &bytes.Buffer{})
	if err := p.PrintSuccess("ok"); err == nil {
		t.Error("PrintSuccess() should fail for unknown formats")
	}
	if err := p.PrintSecret(big.NewInt(1)); err == nil {
		t.Error("PrintSecret() should fail for unknown formats")
	}
}
