// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"github.com/spf13/cobra"

	"github.com/aplane-algo/dbkey/internal/keys"
)

var keyfileCmd = &cobra.Command{
	Use:   "keyfile",
	Short: "Manage key files",
}

var keyfileCreateCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Generate a random key file",
	Long: `Generate a key file holding 32 random bytes in the version 2 XML format.

Keep a copy: a database protected by a key file cannot be unlocked without it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKeyfileCreate(current, args[0])
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage software challenge-response tokens",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Generate a software token secret",
	Long: `Generate a software challenge-response token secret.

Add the file to token_secrets in config.yaml to use the token. A software
token offers no hardware protection.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTokenCreate(current, args[0])
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available challenge-response tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTokenList(cmd.Context(), current)
	},
}

func init() {
	rootCmd.AddCommand(keyfileCmd)
	keyfileCmd.AddCommand(keyfileCreateCmd)
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
}

func runKeyfileCreate(a *app, path string) error {
	if err := keys.CreateKeyFile(path); err != nil {
		return err
	}
	a.printf("Generated key file %s\n", path)
	return nil
}
