// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aplane-algo/dbkey/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of dbkey",
	Args:  cobra.NoArgs,
	// Printing the version must not depend on a readable configuration.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dbkey %s\n", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
