// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package quickunlock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCache_RememberRecallReset(t *testing.T) {
	c := NewFileCache(t.TempDir())
	id := uuid.New()
	other := uuid.New()

	assert.False(t, c.Has(id))
	_, err := c.Recall(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, c.Reset(id), "reset before any entry")

	require.NoError(t, c.Remember(id, []byte("master key one")))
	require.NoError(t, c.Remember(other, []byte("master key two")))

	got, err := c.Recall(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("master key one"), got)
	assert.True(t, c.Has(other))

	require.NoError(t, c.Reset(id))
	assert.False(t, c.Has(id))
	assert.True(t, c.Has(other))
}

func TestFileCache_SecretNotStoredInClear(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	require.NoError(t, c.Remember(uuid.New(), []byte("plaintext-master-key")))

	raw, err := os.ReadFile(filepath.Join(c.Dir(), cacheFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plaintext-master-key")

	info, err := os.Stat(filepath.Join(c.Dir(), keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileCache_Tampered(t *testing.T) {
	c := NewFileCache(t.TempDir())
	id := uuid.New()
	require.NoError(t, c.Remember(id, []byte("secret")))

	path := filepath.Join(c.Dir(), cacheFileName)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var signed signedCache
	require.NoError(t, json.Unmarshal(raw, &signed))
	signed.HMAC = sign([]byte("forged"), make([]byte, 32))
	raw, err = json.Marshal(signed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = c.Recall(id)
	assert.ErrorIs(t, err, ErrTampered)
	assert.ErrorIs(t, c.Reset(id), ErrTampered)
}

func TestFileCache_BadKeyLength(t *testing.T) {
	c := NewFileCache(t.TempDir())
	require.NoError(t, os.MkdirAll(c.Dir(), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), keyFileName), []byte("short"), 0600))

	_, err := c.Recall(uuid.New())
	assert.ErrorContains(t, err, "invalid cache key length")
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	id := uuid.New()
	require.NoError(t, c.Remember(id, []byte("x")))
	assert.False(t, c.Has(id))
	_, err := c.Recall(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, c.Reset(id))
}
