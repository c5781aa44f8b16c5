// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aplane-algo/dbkey/internal/challenge"
	"github.com/aplane-algo/dbkey/internal/config"
	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/database"
	"github.com/aplane-algo/dbkey/internal/keycomponent"
	"github.com/aplane-algo/dbkey/internal/keys"
	"github.com/aplane-algo/dbkey/internal/quickunlock"
	"github.com/aplane-algo/dbkey/internal/tui"
	"github.com/aplane-algo/dbkey/internal/workflow"
)

// defaultTokenSlot is the challenge-response slot used when --token omits one.
const defaultTokenSlot = 2

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg      config.Config
	dataDir  string
	logger   *slog.Logger
	registry *challenge.Registry
	term     *terminal
	out      io.Writer

	assumeYes bool
	plain     bool
}

func newApp(cfg config.Config, dataDir string, logger *slog.Logger, in io.Reader, out, prompts io.Writer) *app {
	registry := challenge.NewRegistry()
	if len(cfg.TokenSecrets) > 0 {
		registry.Add(challenge.NewSoftProvider(cfg.TokenSecrets...))
	}
	return &app{
		cfg:      cfg,
		dataDir:  dataDir,
		logger:   logger,
		registry: registry,
		term:     newTerminal(in, prompts),
		out:      out,
	}
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// quickUnlock returns the quick unlock cache, or a no-op when disabled.
func (a *app) quickUnlock() quickunlock.Cache {
	if !a.cfg.QuickUnlock.Enabled || a.dataDir == "" {
		return quickunlock.Noop{}
	}
	return quickunlock.NewFileCache(a.dataDir)
}

// confirmer picks the confirmation front end. Interactive terminals get
// dialogs unless plain prompts were requested.
func (a *app) confirmer() (workflow.Confirmer, func()) {
	if a.term.IsTerminal() && !a.assumeYes {
		if !a.plain {
			return tui.NewDialog(a.term.in, a.term.out, a.logger), func() {}
		}
		p, err := tui.NewReadlinePrompter(io.NopCloser(a.term.in), a.term.out, false)
		if err == nil {
			return p, func() { _ = p.Close() }
		}
		a.logger.Warn("falling back to line prompts", "error", err)
	}
	return tui.NewLinePrompter(a.term.out, a.term.ReadLine, a.assumeYes), func() {}
}

// editor is a workflow with the standard components registered.
type editor struct {
	*workflow.Workflow
	password *keycomponent.Password
	keyFile  *keycomponent.KeyFile
	token    *keycomponent.ChallengeResponse
}

func (a *app) newEditor(databasePath string, confirm workflow.Confirmer) *editor {
	e := &editor{
		password: keycomponent.NewPassword(),
		keyFile:  keycomponent.NewKeyFile(databasePath, a.logger),
		token:    keycomponent.NewChallengeResponse(a.registry),
	}
	e.Workflow = workflow.New(e.password, workflow.Options{
		Confirmer:   confirm,
		QuickUnlock: a.quickUnlock(),
		Config:      a.cfg,
		Logger:      a.logger,
	})
	e.Register(e.keyFile)
	e.Register(e.token)
	return e
}

// unlockOptions name the factors that unlock an existing database.
type unlockOptions struct {
	keyFile    string
	token      string
	noPassword bool
}

// compositeKey gathers the current key of the database at path.
func (a *app) compositeKey(ctx context.Context, path string, opts unlockOptions) (*keys.CompositeKey, error) {
	b := keys.NewBuilder()

	if !opts.noPassword {
		password, err := a.currentPassword(ctx, path)
		if err != nil {
			return nil, err
		}
		if len(password) > 0 {
			b.AddKey(keys.NewPasswordKey(password))
		}
		crypto.ZeroBytes(password)
	}

	if opts.keyFile != "" {
		fk, err := keys.LoadFileKey(opts.keyFile)
		if err != nil {
			return nil, err
		}
		b.AddKey(fk)
	}

	if opts.token != "" {
		serial, slot, err := parseToken(opts.token)
		if err != nil {
			return nil, err
		}
		dev, err := a.registry.Find(ctx, serial, slot)
		if err != nil {
			return nil, err
		}
		b.AddChallengeResponseKey(keys.NewChallengeResponseKey(dev))
	}

	if b.IsEmpty() {
		return nil, database.ErrEmptyKey
	}
	return b.Build(), nil
}

// currentPassword asks the password helper when one is configured,
// otherwise prompts.
func (a *app) currentPassword(ctx context.Context, path string) ([]byte, error) {
	if a.cfg.PasswordCommand.Configured() {
		return a.cfg.PasswordCommand.Read(ctx)
	}
	return a.term.ReadSecret(fmt.Sprintf("Password for %s: ", filepath.Base(path)))
}

// readNewPassword prompts for a password and its confirmation. An empty first
// entry skips the confirmation.
func (a *app) readNewPassword() (password, repeat []byte, err error) {
	password, err = a.term.ReadSecret("New password (empty for none): ")
	if err != nil {
		return nil, nil, err
	}
	if len(password) == 0 {
		return nil, nil, nil
	}
	repeat, err = a.term.ReadSecret("Repeat password: ")
	if err != nil {
		crypto.ZeroBytes(password)
		return nil, nil, err
	}
	return password, repeat, nil
}

func (a *app) open(ctx context.Context, path string, opts unlockOptions) (*database.Database, error) {
	key, err := a.compositeKey(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, path, key, database.WithKDF(a.cfg.KDF), database.WithLogger(a.logger))
	if errors.Is(err, database.ErrInvalidKey) {
		return nil, fmt.Errorf("%w: check the password, key file and hardware key", err)
	}
	return db, err
}

// parseToken splits "serial" or "serial:slot".
func parseToken(s string) (string, int, error) {
	serial, slotText, found := strings.Cut(s, ":")
	if serial == "" {
		return "", 0, fmt.Errorf("invalid token %q: missing serial", s)
	}
	if !found {
		return serial, defaultTokenSlot, nil
	}
	slot, err := strconv.Atoi(slotText)
	if err != nil || slot < 1 {
		return "", 0, fmt.Errorf("invalid token slot %q", slotText)
	}
	return serial, slot, nil
}
