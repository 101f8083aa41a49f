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

func newAssetCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Lock files behind a scheme",
		Long: `Encrypt files under a scheme so that any k of its shares unlock them.
Shares are checked against the scheme's commitment before any file is
touched.`,
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt <asset-id> <path>",
		Short: "Encrypt a file under a scheme",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemeID, _ := cmd.Flags().GetString("scheme")
			shares, err := readShares(cmd)
			if err != nil {
				return err
			}
			return withApp(cfg, func(a *app.App) error {
				asset, err := a.Manager.EncryptAsset(cmd.Context(), args[0], args[1], schemeID, shares)
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintAsset(asset)
			})
		},
	}
	encryptCmd.Flags().String("scheme", "", "scheme ID (required)")
	_ = encryptCmd.MarkFlagRequired("scheme")
	addShareFlags(encryptCmd)

	decryptCmd := &cobra.Command{
		Use:   "decrypt <asset-id>",
		Short: "Decrypt an asset and release it from its scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			shares, err := readShares(cmd)
			if err != nil {
				return err
			}
			return withApp(cfg, func(a *app.App) error {
				out, err := a.Manager.DecryptAsset(cmd.Context(), args[0], path, shares)
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintPath("decrypted", out)
			})
		},
	}
	decryptCmd.Flags().String("path", "", "expected encrypted path (defaults to the recorded one)")
	addShareFlags(decryptCmd)

	showCmd := &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show an encrypted asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(a *app.App) error {
				asset, err := a.Manager.Asset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintAsset(asset)
			})
		},
	}

	unlinkCmd := &cobra.Command{
		Use:   "unlink <asset-id>",
		Short: "Forget an asset's scheme without touching its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(a *app.App) error {
				if err := a.Manager.Unlink(cmd.Context(), args[0]); err != nil {
					return err
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).
					PrintSuccess(fmt.Sprintf("Unlinked asset %s", args[0]))
			})
		},
	}

	cmd.AddCommand(encryptCmd, decryptCmd, showCmd, unlinkCmd)
	return cmd
}
