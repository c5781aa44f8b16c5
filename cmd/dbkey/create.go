// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/database"
	"github.com/aplane-algo/dbkey/internal/keys"
	"github.com/aplane-algo/dbkey/internal/workflow"
)

type createOptions struct {
	noPassword    bool
	keyFile       string
	createKeyFile bool
	token         string
	storePassword bool
}

var createOpts createOptions

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a database protected by a new key",
	Long: `Create a database protected by a new key.

You are asked for a password unless --no-password is given. A key file and a
token can be added as further factors. At least one factor is required.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreate(cmd.Context(), current, args[0], createOpts)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().BoolVar(&createOpts.noPassword, "no-password", false, "Do not protect the database with a password")
	createCmd.Flags().StringVar(&createOpts.keyFile, "key-file", "", "Add a key file")
	createCmd.Flags().BoolVar(&createOpts.createKeyFile, "generate-key-file", false, "Generate the key file given by --key-file")
	createCmd.Flags().StringVar(&createOpts.token, "token", "", "Add a challenge-response token (serial[:slot])")
	createCmd.Flags().BoolVar(&createOpts.storePassword, "store-password", false, "Hand the new password to the configured password command")
}

func runCreate(ctx context.Context, a *app, path string, opts createOptions) error {
	if filepath.Ext(path) == "" {
		path += database.FileExtension
	}
	if opts.createKeyFile && opts.keyFile == "" {
		return fmt.Errorf("--generate-key-file requires --key-file")
	}

	db, err := database.Create(path, database.WithKDF(a.cfg.KDF), database.WithLogger(a.logger))
	if err != nil {
		return err
	}

	if opts.createKeyFile {
		if err := keys.CreateKeyFile(opts.keyFile); err != nil {
			return err
		}
		a.printf("Generated key file %s\n", opts.keyFile)
	}

	confirm, done := a.confirmer()
	defer done()

	e := a.newEditor(path, confirm)
	e.Load(db)

	var password []byte
	if opts.noPassword {
		e.password.Remove()
	} else {
		var repeat []byte
		password, repeat, err = a.readNewPassword()
		if err != nil {
			return err
		}
		e.password.SetPassword(password, repeat)
		crypto.ZeroBytes(repeat)
	}
	defer crypto.ZeroBytes(password)

	if opts.keyFile != "" {
		e.keyFile.Edit()
		e.keyFile.SetPath(opts.keyFile)
	}
	if opts.token != "" {
		serial, slot, err := parseToken(opts.token)
		if err != nil {
			return err
		}
		e.token.Edit()
		e.token.SelectDevice(serial, slot)
	}

	out, err := e.Save(ctx)
	if err != nil {
		return fmt.Errorf("database not created: %w", err)
	}

	a.printf("Created %s\n", path)
	a.printf("  UUID:    %s\n", db.PublicUUID())
	a.printf("  Factors: %s\n", factorList(out))

	if opts.storePassword && len(password) > 0 {
		return a.storePassword(ctx, password)
	}
	return nil
}

func (a *app) storePassword(ctx context.Context, password []byte) error {
	if !a.cfg.PasswordCommand.Configured() {
		return errors.New("--store-password requires password_command in config.yaml")
	}
	if err := a.cfg.PasswordCommand.Write(ctx, password); err != nil {
		return fmt.Errorf("key saved but password was not stored: %w", err)
	}
	a.printf("Password stored with the password command\n")
	return nil
}

func factorList(out workflow.Outcome) string {
	if out.Key == nil {
		return "none"
	}
	kinds := out.Key.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
