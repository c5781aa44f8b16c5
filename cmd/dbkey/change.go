// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/keycomponent"
)

type changeOptions struct {
	unlock unlockOptions

	newPassword    bool
	removePassword bool
	newKeyFile     string
	removeKeyFile  bool
	newToken       string
	removeToken    bool
	storePassword  bool
}

var changeOpts changeOptions

var changeCmd = &cobra.Command{
	Use:   "change <path>",
	Short: "Change the key of a database",
	Long: `Unlock a database with its current key, then add, replace or remove factors.

Factors that are not mentioned are kept. Running without any change flag
leaves the key untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChange(cmd.Context(), current, args[0], changeOpts)
	},
}

func init() {
	rootCmd.AddCommand(changeCmd)
	f := changeCmd.Flags()
	f.StringVar(&changeOpts.unlock.keyFile, "key-file", "", "Current key file")
	f.StringVar(&changeOpts.unlock.token, "token", "", "Current challenge-response token (serial[:slot])")
	f.BoolVar(&changeOpts.unlock.noPassword, "no-password", false, "The database currently has no password")

	f.BoolVar(&changeOpts.newPassword, "new-password", false, "Set a new password")
	f.BoolVar(&changeOpts.removePassword, "remove-password", false, "Remove the password")
	f.StringVar(&changeOpts.newKeyFile, "new-key-file", "", "Set a new key file")
	f.BoolVar(&changeOpts.removeKeyFile, "remove-key-file", false, "Remove the key file")
	f.StringVar(&changeOpts.newToken, "new-token", "", "Set a new challenge-response token (serial[:slot])")
	f.BoolVar(&changeOpts.removeToken, "remove-token", false, "Remove the challenge-response token")
	f.BoolVar(&changeOpts.storePassword, "store-password", false, "Hand the new password to the configured password command")

	changeCmd.MarkFlagsMutuallyExclusive("new-password", "remove-password")
	changeCmd.MarkFlagsMutuallyExclusive("new-key-file", "remove-key-file")
	changeCmd.MarkFlagsMutuallyExclusive("new-token", "remove-token")
}

func runChange(ctx context.Context, a *app, path string, opts changeOptions) error {
	db, err := a.open(ctx, path, opts.unlock)
	if err != nil {
		return err
	}

	// Another process may rewrite the file while prompts are open.
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := db.Watch(watchCtx); err != nil {
		a.logger.Warn("not watching database for external changes", "error", err)
	}

	confirm, done := a.confirmer()
	defer done()

	e := a.newEditor(path, confirm)
	e.Load(db)

	var password []byte
	defer func() { crypto.ZeroBytes(password) }()

	switch {
	case opts.removePassword:
		if err := remove(e.password); err != nil {
			return err
		}
	case opts.newPassword:
		e.password.Edit()
		var repeat []byte
		password, repeat, err = a.readNewPassword()
		if err != nil {
			return err
		}
		e.password.SetPassword(password, repeat)
		crypto.ZeroBytes(repeat)
	}

	switch {
	case opts.removeKeyFile:
		if err := remove(e.keyFile); err != nil {
			return err
		}
	case opts.newKeyFile != "":
		e.keyFile.Edit()
		e.keyFile.SetPath(opts.newKeyFile)
	}

	switch {
	case opts.removeToken:
		if err := remove(e.token); err != nil {
			return err
		}
	case opts.newToken != "":
		serial, slot, err := parseToken(opts.newToken)
		if err != nil {
			return err
		}
		e.token.Edit()
		e.token.SelectDevice(serial, slot)
	}

	out, err := e.Save(ctx)
	if err != nil {
		return fmt.Errorf("key not changed: %w", err)
	}
	if !out.Changed {
		a.printf("No changes requested, key of %s left as is\n", path)
		return nil
	}

	a.printf("Changed key of %s\n", path)
	a.printf("  Factors: %s\n", factorList(out))

	if opts.storePassword && len(password) > 0 {
		return a.storePassword(ctx, password)
	}
	return nil
}

func remove(c keycomponent.Component) error {
	if !c.ComponentAdded() {
		return fmt.Errorf("the database key has no %s", c.Kind())
	}
	c.Remove()
	return nil
}
