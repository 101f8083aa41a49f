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
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/jeremyhahn/go-sharelock/pkg/scheme"
	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

func schemeJSON(rec *scheme.Record) map[string]interface{} {
	return map[string]interface{}{
		"id":             rec.ID,
		"name":           rec.Name,
		"field_exponent": rec.FieldExponent,
		"k":              rec.K,
		"n":              rec.N,
		"difference":     rec.Difference(),
		"commitment":     rec.Commitment,
		"created_at":     rec.CreatedAt,
		"updated_at":     rec.UpdatedAt,
	}
}

func assetJSON(a *scheme.Asset) map[string]interface{} {
	return map[string]interface{}{
		"id":           a.ID,
		"scheme_id":    a.SchemeID,
		"path":         a.Path,
		"encrypted_at": a.EncryptedAt,
	}
}

// PrintShares prints a scheme together with its freshly issued shares.
// The shares are never shown again.
func (p *Printer) PrintShares(rec *scheme.Record, shares []shamir.Share) error {
	switch p.format {
	case OutputFormatJSON:
		encoded := make([]string, len(shares))
		for i, s := range shares {
			encoded[i] = shamir.EncodeShare(s)
		}
		out := schemeJSON(rec)
		out["shares"] = encoded
		return p.printJSON(out)
	case OutputFormatText:
		p.printScheme(rec)
		fmt.Fprintf(p.writer, "Shares (any %d of %d recover the secret):\n", rec.K, rec.N)
		for _, s := range shares {
			fmt.Fprintf(p.writer, "  %s\n", shamir.EncodeShare(s))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintScheme prints a scheme record
func (p *Printer) PrintScheme(rec *scheme.Record) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(schemeJSON(rec))
	case OutputFormatText:
		p.printScheme(rec)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printScheme(rec *scheme.Record) {
	fmt.Fprintf(p.writer, "Scheme Information:\n")
	fmt.Fprintf(p.writer, "  ID:         %s\n", rec.ID)
	fmt.Fprintf(p.writer, "  Name:       %s\n", rec.Name)
	fmt.Fprintf(p.writer, "  Field:      2^%d-1\n", rec.FieldExponent)
	fmt.Fprintf(p.writer, "  Threshold:  %d of %d\n", rec.K, rec.N)
	fmt.Fprintf(p.writer, "  Commitment: %s\n", rec.Commitment)
	fmt.Fprintf(p.writer, "  Created:    %s\n", rec.CreatedAt.Format(time.RFC3339))
	if !rec.UpdatedAt.Equal(rec.CreatedAt) {
		fmt.Fprintf(p.writer, "  Refreshed:  %s\n", rec.UpdatedAt.Format(time.RFC3339))
	}
}

// PrintSchemeList prints a list of schemes
func (p *Printer) PrintSchemeList(recs []*scheme.Record) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(recs))
		for i, rec := range recs {
			list[i] = schemeJSON(rec)
		}
		return p.printJSON(map[string]interface{}{"schemes": list})
	case OutputFormatText:
		if len(recs) == 0 {
			fmt.Fprintln(p.writer, "No schemes found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-36s  %-20s  %-6s  %s\n", "ID", "NAME", "FIELD", "K/N")
		fmt.Fprintln(p.writer, strings.Repeat("-", 74))
		for _, rec := range recs {
			fmt.Fprintf(p.writer, "%-36s  %-20s  %-6d  %d/%d\n", rec.ID, rec.Name, rec.FieldExponent, rec.K, rec.N)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintAsset prints an encrypted asset link
func (p *Printer) PrintAsset(a *scheme.Asset) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(assetJSON(a))
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Asset Information:\n")
		fmt.Fprintf(p.writer, "  ID:        %s\n", a.ID)
		fmt.Fprintf(p.writer, "  Scheme:    %s\n", a.SchemeID)
		fmt.Fprintf(p.writer, "  Path:      %s\n", a.Path)
		fmt.Fprintf(p.writer, "  Encrypted: %s\n", a.EncryptedAt.Format(time.RFC3339))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintAssetList prints the assets protected by a scheme
func (p *Printer) PrintAssetList(assets []*scheme.Asset) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(assets))
		for i, a := range assets {
			list[i] = assetJSON(a)
		}
		return p.printJSON(map[string]interface{}{"assets": list})
	case OutputFormatText:
		if len(assets) == 0 {
			fmt.Fprintln(p.writer, "No assets found")
			return nil
		}
		for _, a := range assets {
			fmt.Fprintf(p.writer, "  - %s  %s\n", a.ID, a.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVerified reports a share set that matched the commitment
func (p *Printer) PrintVerified(schemeID string, shares []shamir.Share) error {
	indices := shamir.Indices(shares)
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"scheme_id": schemeID,
			"valid":     true,
			"indices":   indices,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Shares %v match scheme %s\n", indices, schemeID)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSecret prints a recovered secret in decimal
func (p *Printer) PrintSecret(secret *big.Int) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"secret": secret.Text(10),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, secret.Text(10))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPath reports the file an encrypt or decrypt produced
func (p *Printer) PrintPath(action, path string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "success",
			"action": action,
			"path":   path,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "%s: %s\n", action, path)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message. JSON output carries the error type
// label as well.
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		if t := sharelock.ErrorType(err); t != "internal" {
			out["type"] = t
		}
		return p.printJSON(out)
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
