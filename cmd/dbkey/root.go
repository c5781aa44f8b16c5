// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aplane-algo/dbkey/internal/config"
	"github.com/aplane-algo/dbkey/internal/logging"
	"github.com/aplane-algo/dbkey/internal/security"
)

var (
	dataDirFlag  string
	verbose      bool
	assumeYes    bool
	plainPrompts bool

	// current is set once configuration is loaded.
	current *app
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbkey",
	Short: "Manage the credentials that protect a database",
	Long: `dbkey creates databases protected by a composite key and changes that key.

A key combines any of a password, a key file and a challenge-response token.
Weak or missing passwords need confirmation, and a configured minimum password
quality cannot be overridden.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.DataDir(dataDirFlag)
		if err != nil {
			return err
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger := logging.New(level, cmd.ErrOrStderr())
		slog.SetDefault(logger)
		security.Harden(cfg.Security.LockMemory, logger)

		current = newApp(cfg, dir, logger, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		current.assumeYes = assumeYes
		current.plain = plainPrompts
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDirFlag, "data", "d", "", "Data directory (default $"+config.DataDirEnv+" or ~/.dbkey)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to weak and missing password warnings")
	rootCmd.PersistentFlags().BoolVar(&plainPrompts, "plain", false, "Use line prompts instead of dialogs on a terminal")
}
