// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package workflow

import "errors"

var (
	// ErrNoEncryptionKey indicates the new key would have no factors
	ErrNoEncryptionKey = errors.New("no encryption key added")

	// ErrSaveInProgress indicates Save or Discard was called during a save
	ErrSaveInProgress = errors.New("a key change is already in progress")

	// ErrNotLoaded indicates Save was called before Load
	ErrNotLoaded = errors.New("no database loaded")
)
