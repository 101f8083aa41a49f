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
	"fmt"

	"github.com/jeremyhahn/go-sharelock/internal/app"
	"github.com/spf13/cobra"
)

func newSchemeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheme",
		Short: "Manage threshold schemes",
		Long:  `Create, list, refresh, and delete threshold schemes`,
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scheme and print its shares",
		Long: `Generate a random secret, split it into n shares of which any k recover
it, and store a commitment to the secret. The shares are printed once and
are not stored; distribute them before closing the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			field, _ := cmd.Flags().GetInt("field")
			k, _ := cmd.Flags().GetInt("threshold")
			n, _ := cmd.Flags().GetInt("total")

			printVerbose(cmd, cfg, "Creating %d-of-%d scheme over 2^%d-1", k, n, field)
			return withApp(cfg, func(a *app.App) error {
				rec, shares, err := a.Manager.Create(cmd.Context(), name, field, k, n)
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintShares(rec, shares)
			})
		},
	}
	createCmd.Flags().String("name", "", "scheme name (required)")
	createCmd.Flags().Int("field", 127, "field exponent e of the prime 2^e-1 (89, 107, 127, 521)")
	createCmd.Flags().IntP("threshold", "k", 3, "shares required to recover the secret")
	createCmd.Flags().IntP("total", "n", 5, "shares to generate (at most 20)")
	_ = createCmd.MarkFlagRequired("name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List schemes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(a *app.App) error {
				recs, err := a.Manager.List(cmd.Context())
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSchemeList(recs)
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <scheme-id>",
		Short: "Show a scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(a *app.App) error {
				rec, err := a.Manager.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintScheme(rec)
			})
		},
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh <scheme-id>",
		Short: "Replace a scheme's secret and shares",
		Long: `Draw a new secret for an unused scheme and print its new shares. The old
shares stop matching. Schemes that still protect assets cannot be
refreshed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(a *app.App) error {
				rec, shares, err := a.Manager.Refresh(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintShares(rec, shares)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <scheme-id>",
		Short: "Delete an unused scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(a *app.App) error {
				if err := a.Manager.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).
					PrintSuccess(fmt.Sprintf("Deleted scheme %s", args[0]))
			})
		},
	}

	assetsCmd := &cobra.Command{
		Use:   "assets <scheme-id>",
		Short: "List the assets a scheme protects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(a *app.App) error {
				assets, err := a.Manager.Assets(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintAssetList(assets)
			})
		},
	}

	cmd.AddCommand(createCmd, listCmd, showCmd, refreshCmd, deleteCmd, assetsCmd)
	return cmd
}
