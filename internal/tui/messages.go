// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"fmt"

	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

// Confirmation texts shared by Dialog and LinePrompter.
const (
	NoPasswordTitle   = "No password set"
	NoPasswordMessage = "WARNING! You have not set a password. Using a database without " +
		"a password is strongly discouraged!\n\nAre you sure you want to continue without a password?"
	NoPasswordAccept = "Continue without password"

	WeakPasswordTitle  = "Weak password"
	WeakPasswordAccept = "Continue with weak password"
)

// WeakPasswordMessage describes a weak password of quality q.
func WeakPasswordMessage(q passwordhealth.Quality) string {
	return fmt.Sprintf("This is a weak password (%s)! For better protection of your secrets, "+
		"you should choose a stronger password.", q)
}
