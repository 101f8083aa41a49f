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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeremyhahn/go-sharelock/internal/app"
	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
	"github.com/spf13/cobra"
)

func addShareFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("share", "s", nil, "share in <index>-<value> form (repeatable)")
	cmd.Flags().String("shares-file", "", "file with one share per line or a JSON array, - for stdin")
}

// readShares collects shares from --share flags and --shares-file.
func readShares(cmd *cobra.Command) ([]shamir.Share, error) {
	raw, _ := cmd.Flags().GetStringArray("share")
	path, _ := cmd.Flags().GetString("shares-file")

	var shares []shamir.Share
	for _, s := range raw {
		share, err := shamir.DecodeShare(s)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}

	if path != "" {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(path) // #nosec G304 - path supplied by the operator
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read shares: %w", err)
		}
		fromFile, err := parseShares(data)
		if err != nil {
			return nil, err
		}
		shares = append(shares, fromFile...)
	}

	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: give --share or --shares-file", sharelock.ErrInsufficientShares)
	}
	return shares, nil
}

// parseShares accepts a JSON array of {"index","value"} objects or one
// <index>-<value> string per line. Blank lines and # comments are skipped.
func parseShares(data []byte) ([]shamir.Share, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var encoded []shamir.EncodedShare
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, fmt.Errorf("%w: %v", sharelock.ErrMalformedShare, err)
		}
		return shamir.DecodeShares(encoded)
	}

	var shares []shamir.Share
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		share, err := shamir.DecodeShare(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		shares = append(shares, share)
	}
	return shares, scanner.Err()
}

func newSharesCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shares",
		Short: "Work with scheme shares",
	}

	verifyCmd := &cobra.Command{
		Use:   "verify <scheme-id>",
		Short: "Check shares against a scheme's commitment",
		Long: `Check that the given shares recover the secret a scheme committed to.
At least k shares with indices in [1, n] are required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares, err := readShares(cmd)
			if err != nil {
				return err
			}
			return withApp(cfg, func(a *app.App) error {
				if err := a.Manager.Verify(cmd.Context(), args[0], shares); err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintVerified(args[0], shares)
			})
		},
	}
	addShareFlags(verifyCmd)

	cmd.AddCommand(verifyCmd)
	return cmd
}

func newSecretCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Recover raw secrets",
	}

	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Interpolate a secret from shares",
		Long: `Interpolate the secret from two or more shares without a scheme.
Nothing checks the result: too few or mismatched shares still produce a
number, just not the secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			field, _ := cmd.Flags().GetInt("field")
			shares, err := readShares(cmd)
			if err != nil {
				return err
			}
			return withApp(cfg, func(a *app.App) error {
				secret, err := a.Engine.RecoverSecret(field, shares)
				if err != nil {
					return err
				}
				printVerbose(cmd, cfg, "Recovered from shares %v", shamir.Indices(shares))
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSecret(secret)
			})
		},
	}
	recoverCmd.Flags().Int("field", 127, "field exponent e of the prime 2^e-1")
	addShareFlags(recoverCmd)

	cmd.AddCommand(recoverCmd)
	return cmd
}
