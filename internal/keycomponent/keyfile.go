// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keycomponent

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aplane-algo/dbkey/internal/keys"
)

// KeyFile edits the key file factor.
type KeyFile struct {
	base
	path         string
	databasePath string
	lastFormat   keys.FileFormat
	logger       *slog.Logger
}

// NewKeyFile creates a key file component in PageAddNew.
// databasePath guards against using the database file as its own key file.
func NewKeyFile(databasePath string, logger *slog.Logger) *KeyFile {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyFile{
		base:         newBase("Key File", keys.KindFile),
		databasePath: databasePath,
		logger:       logger,
	}
}

// SetPath selects the key file to use.
func (k *KeyFile) SetPath(path string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.path = path
}

// Path returns the selected key file.
func (k *KeyFile) Path() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.path
}

// LastFormat returns the format detected by the last successful AddToCompositeKey.
func (k *KeyFile) LastFormat() keys.FileFormat {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastFormat
}

func (k *KeyFile) IsEmpty() bool {
	return k.VisiblePage() != PageEdit || k.Path() == ""
}

func (k *KeyFile) Validate(ctx context.Context) error {
	path := k.Path()
	if path == "" {
		return k.invalid("Please select a key file.", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return k.invalid("Failed to open key file.", err)
	}
	if info.IsDir() {
		return k.invalid("The selected key file is a directory.", nil)
	}

	if k.databasePath != "" && sameFile(path, k.databasePath) {
		return k.invalid("You cannot use your database file as a key file.", nil)
	}
	return nil
}

func (k *KeyFile) AddToCompositeKey(ctx context.Context, b *keys.Builder) error {
	fk, err := keys.LoadFileKey(k.Path())
	if err != nil {
		return k.invalid("Failed to load key file.", err)
	}

	if fk.Format().Legacy() {
		k.logger.Warn("legacy key file format, consider generating a new key file",
			"format", fk.Format().String())
	}

	k.mu.Lock()
	k.lastFormat = fk.Format()
	k.mu.Unlock()

	b.AddKey(fk)
	return nil
}

func sameFile(a, b string) bool {
	ia, errA := os.Stat(a)
	ib, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(ia, ib)
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
