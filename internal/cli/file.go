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
	"github.com/jeremyhahn/go-sharelock/internal/app"
	"github.com/spf13/cobra"
)

// newFileCmd encrypts files directly from shares. Nothing is recorded and
// nothing checks the shares, so a wrong set yields a wrong key.
func newFileCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Encrypt or decrypt files with shares, without a scheme",
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt <path>",
		Short: "Encrypt a file to <path>.enc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, _ := cmd.Flags().GetInt("field")
			keep, _ := cmd.Flags().GetBool("keep")
			shares, err := readShares(cmd)
			if err != nil {
				return err
			}
			return withApp(cfg, func(a *app.App) error {
				out, err := a.Engine.EncryptFile(args[0], field, shares)
				if err != nil {
					return err
				}
				if !keep {
					if err := a.Engine.Cipher().Fs().Remove(args[0]); err != nil {
						return err
					}
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintPath("encrypted", out)
			})
		},
	}
	encryptCmd.Flags().Int("field", 127, "field exponent e of the prime 2^e-1")
	encryptCmd.Flags().Bool("keep", false, "keep the plaintext file")
	addShareFlags(encryptCmd)

	decryptCmd := &cobra.Command{
		Use:   "decrypt <path.enc>",
		Short: "Decrypt a .enc file next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, _ := cmd.Flags().GetInt("field")
			keep, _ := cmd.Flags().GetBool("keep")
			shares, err := readShares(cmd)
			if err != nil {
				return err
			}
			return withApp(cfg, func(a *app.App) error {
				out, err := a.Engine.DecryptFile(args[0], field, shares)
				if err != nil {
					return err
				}
				if !keep {
					if err := a.Engine.Cipher().Fs().Remove(args[0]); err != nil {
						return err
					}
				}
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintPath("decrypted", out)
			})
		},
	}
	decryptCmd.Flags().Int("field", 127, "field exponent e of the prime 2^e-1")
	decryptCmd.Flags().Bool("keep", false, "keep the encrypted file")
	addShareFlags(decryptCmd)

	cmd.AddCommand(encryptCmd, decryptCmd)
	return cmd
}
