// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"github.com/spf13/cobra"

	"github.com/aplane-algo/dbkey/internal/database"
	"github.com/aplane-algo/dbkey/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status <path>",
	Short: "Show the key factors of a database without unlocking it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(current, args[0])
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(a *app, path string) error {
	h, err := database.ReadHeader(path)
	if err != nil {
		return err
	}
	a.printf("%s", tui.RenderStatus(path, *h, a.quickUnlock().Has(h.PublicUUID)))
	return nil
}
