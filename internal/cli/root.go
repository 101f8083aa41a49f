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

// Package cli implements the sharelock command-line tool. Every command
// runs in-process against the configured storage; no daemon is needed.
package cli

import (
	"fmt"

	"github.com/jeremyhahn/go-sharelock/internal/app"
	"github.com/spf13/cobra"
)

const rootLong = `sharelock splits secrets into threshold shares and locks files
behind them.

A scheme is a (k, n) Shamir split over a Mersenne prime field 2^e-1 with
e in {89, 107, 127, 521}. Only a salted commitment to the secret is kept;
the n shares are printed once at creation and any k of them unlock the
files encrypted under the scheme.

Configuration is read from --config (or SHARELOCK_CONFIG). Without a
config file schemes are stored under --data-dir.`

// Execute runs the root command, printing any error in the selected
// output format.
func Execute() error {
	root, cfg := newRootCmd()
	if err := root.Execute(); err != nil {
		_ = NewPrinter(cfg.OutputFormat, root.ErrOrStderr()).PrintError(err)
		return err
	}
	return nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *Config) {
	cfg := NewConfig()

	root := &cobra.Command{
		Use:           "sharelock",
		Short:         "sharelock - threshold secret sharing and file locking",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Resolve()
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "config file (default is $SHARELOCK_CONFIG)")
	flags.StringP(keyOutput, "o", string(OutputFormatText), "output format (text, json)")
	flags.BoolP(keyVerbose, "v", false, "verbose output")
	flags.String(keyStorage, "", "storage backend override (memory, file, badger)")
	flags.String(keyDataDir, DefaultDataDir, "storage directory for the file and badger backends")
	flags.String(keyFilesRoot, "", "confine asset paths beneath this directory")
	if err := cfg.BindFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		newVersionCmd(cfg),
		newSchemeCmd(cfg),
		newSharesCmd(cfg),
		newSecretCmd(cfg),
		newFileCmd(cfg),
		newAssetCmd(cfg),
	)
	return root, cfg
}

// withApp opens the components for one command and closes them after.
func withApp(cfg *Config, fn func(a *app.App) error) error {
	a, err := cfg.Open()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, cfg *Config, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
