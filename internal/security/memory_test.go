// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package security

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/dbkey/internal/logging"
)

func TestHarden_DisablesCoreDumps(t *testing.T) {
	var before syscall.Rlimit
	require.NoError(t, syscall.Getrlimit(syscall.RLIMIT_CORE, &before))

	s := Harden(false, logging.Discard())
	assert.True(t, s.CoreDumpsDisabled)
	assert.False(t, s.MemoryLocked)

	var after syscall.Rlimit
	require.NoError(t, syscall.Getrlimit(syscall.RLIMIT_CORE, &after))
	assert.Zero(t, after.Cur)
}
