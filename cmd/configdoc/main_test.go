// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	render(&buf)
	out := buf.String()

	assert.Contains(t, out, "| `security.database_password_minimum_quality` | int | `0` |")
	assert.Contains(t, out, "| `quick_unlock.enabled` | bool | `true` |")
	assert.Contains(t, out, "| `kdf.memory_kib` | uint | `65536` |")
	assert.Contains(t, out, "| `password_command.argv` | []string |")
	assert.Contains(t, out, "| `password_command.env` | map[string]string |")
	assert.Contains(t, out, "| `password_command.timeout` | duration | `5s` |")
	assert.Contains(t, out, "| `token_secrets` | []string | `(none)` |")

	assert.Contains(t, out, "| `DBKEY_MIN_PASSWORD_QUALITY` |")
	assert.Contains(t, out, "| `DBKEY_DATA` |")
	assert.Contains(t, out, "| `DBKEY_DEBUG` |")
}
