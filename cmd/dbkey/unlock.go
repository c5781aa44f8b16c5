// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/database"
	"github.com/aplane-algo/dbkey/internal/quickunlock"
)

type unlockCmdOptions struct {
	unlock   unlockOptions
	remember bool
	quick    bool
}

var unlockOpts unlockCmdOptions

var unlockCmd = &cobra.Command{
	Use:   "unlock <path>",
	Short: "Check the key of a database",
	Long: `Unlock a database to check its key.

With --remember the derived master key is kept in the quick unlock cache, and
--quick then unlocks without asking for the key again. Changing the key of a
database forgets it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnlock(cmd.Context(), current, args[0], unlockOpts)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <path>",
	Short: "Remove a database from the quick unlock cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runForget(current, args[0])
	},
}

func init() {
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(forgetCmd)
	f := unlockCmd.Flags()
	f.StringVar(&unlockOpts.unlock.keyFile, "key-file", "", "Key file")
	f.StringVar(&unlockOpts.unlock.token, "token", "", "Challenge-response token (serial[:slot])")
	f.BoolVar(&unlockOpts.unlock.noPassword, "no-password", false, "The database has no password")
	f.BoolVar(&unlockOpts.remember, "remember", false, "Remember the database for quick unlock")
	f.BoolVar(&unlockOpts.quick, "quick", false, "Use quick unlock if the database is remembered")
}

func runUnlock(ctx context.Context, a *app, path string, opts unlockCmdOptions) error {
	cache := a.quickUnlock()

	if opts.quick {
		ok, err := a.quickOpen(path, cache)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	db, err := a.open(ctx, path, opts.unlock)
	if err != nil {
		return err
	}
	a.printf("Unlocked %s (%s)\n", path, db.PublicUUID())

	if opts.remember {
		if _, ok := cache.(quickunlock.Noop); ok {
			return errors.New("quick unlock is disabled in the configuration")
		}
		master := db.MasterKey()
		defer crypto.ZeroBytes(master)
		if err := cache.Remember(db.PublicUUID(), master); err != nil {
			return fmt.Errorf("failed to remember database: %w", err)
		}
		a.printf("Remembered for quick unlock\n")
	}
	return nil
}

// quickOpen unlocks from the cache. It reports false when the database has to
// be unlocked with its key.
func (a *app) quickOpen(path string, cache quickunlock.Cache) (bool, error) {
	h, err := database.ReadHeader(path)
	if err != nil {
		return false, err
	}

	master, err := cache.Recall(h.PublicUUID)
	switch {
	case errors.Is(err, quickunlock.ErrNotFound):
		a.logger.Debug("database not remembered", "database", h.PublicUUID.String())
		return false, nil
	case err != nil:
		a.logger.Warn("quick unlock unavailable", "error", err)
		return false, nil
	}
	defer crypto.ZeroBytes(master)

	db, err := database.OpenWithMasterKey(path, master, database.WithLogger(a.logger))
	if errors.Is(err, database.ErrInvalidKey) {
		// The key changed since it was remembered.
		if err := cache.Reset(h.PublicUUID); err != nil {
			a.logger.Warn("failed to forget stale quick unlock entry", "error", err)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	a.printf("Unlocked %s (%s) with quick unlock\n", path, db.PublicUUID())
	return true, nil
}

func runForget(a *app, path string) error {
	h, err := database.ReadHeader(path)
	if err != nil {
		return err
	}
	if err := a.quickUnlock().Reset(h.PublicUUID); err != nil {
		return fmt.Errorf("failed to forget database: %w", err)
	}
	a.printf("Forgot %s\n", path)
	return nil
}
