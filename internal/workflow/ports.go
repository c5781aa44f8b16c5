// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/database"
	"github.com/aplane-algo/dbkey/internal/keys"
	"github.com/aplane-algo/dbkey/internal/passwordhealth"
	"github.com/aplane-algo/dbkey/internal/policy"
)

// KeyStore is the database whose key is being changed.
// *database.Database satisfies it.
type KeyStore interface {
	// Key returns the current key; nil or empty for a new database.
	Key() *keys.CompositeKey
	SetKey(ctx context.Context, key *keys.CompositeKey, opts database.SetKeyOptions) error
	MarkModified()
	PublicUUID() uuid.UUID
}

// QuickUnlock is notified after the key of a database changed.
type QuickUnlock interface {
	Reset(id uuid.UUID) error
}

// Confirmer asks the user to acknowledge warnings and shows errors.
// Every call blocks until the user answers.
type Confirmer interface {
	policy.Acknowledger

	// ShowError reports a failure. The user can only acknowledge it.
	ShowError(title, message string)
}

// QualityConfig supplies the minimum password quality (0..4).
type QualityConfig interface {
	MinimumPasswordQuality() int
}

// MinimumQuality is a fixed QualityConfig.
type MinimumQuality int

func (m MinimumQuality) MinimumPasswordQuality() int { return int(m) }

type nopQuickUnlock struct{}

func (nopQuickUnlock) Reset(uuid.UUID) error { return nil }

// declineAll refuses every warning. Used when no Confirmer is configured.
type declineAll struct{}

func (declineAll) ConfirmNoPassword() bool                          { return false }
func (declineAll) ConfirmWeakPassword(passwordhealth.Quality) bool { return false }
func (declineAll) ShowError(string, string)                        {}
