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

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeremyhahn/go-sharelock/internal/config"
	"github.com/jeremyhahn/go-sharelock/internal/server"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default $SHARELOCK_CONFIG)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sharelockd\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	slog.Info("Starting sharelock server", "config", *configPath, "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, stop := server.SetupSignalHandler()
	defer stop()

	if err := srv.Start(); err != nil {
		slog.Error("Failed to start server", slog.Any("error", err))
		_ = srv.Shutdown()
		os.Exit(1)
	}

	// SIGHUP re-reads the config file
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			next, err := config.Load(*configPath)
			if err != nil {
				slog.Error("Reload failed", slog.Any("error", err))
				continue
			}
			if err := srv.Reload(next); err != nil {
				slog.Error("Reload failed", slog.Any("error", err))
			}
		}
	}()

	serveErr := srv.Wait(shutdownCtx)
	signal.Stop(hup)

	if err := srv.Shutdown(); err != nil {
		slog.Error("Error during shutdown", slog.Any("error", err))
		os.Exit(1)
	}
	if serveErr != nil {
		slog.Error("Server failed", slog.Any("error", serveErr))
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
