// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package challenge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) Family() string { return "broken" }
func (failingProvider) Devices(context.Context) ([]Device, error) {
	return nil, errors.New("usb timeout")
}

func TestSoftToken_Challenge(t *testing.T) {
	token := NewSoftToken(bytes.Repeat([]byte{0x01}, SoftSecretLen), 2)
	ctx := context.Background()

	r1, err := token.Challenge(ctx, []byte("seed"))
	require.NoError(t, err)
	r2, err := token.Challenge(ctx, []byte("seed"))
	require.NoError(t, err)
	r3, err := token.Challenge(ctx, []byte("other"))
	require.NoError(t, err)

	assert.Len(t, r1, 20)
	assert.Equal(t, r1, r2)
	assert.NotEqual(t, r1, r3)
	assert.Equal(t, 2, token.Slot())
	assert.Len(t, token.Serial(), 8)
	assert.Contains(t, token.Name(), token.Serial())
}

func TestSoftToken_ChallengeCancelled(t *testing.T) {
	token := NewSoftToken(bytes.Repeat([]byte{0x01}, SoftSecretLen), 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := token.Challenge(ctx, []byte("seed"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSoftSecret_CreateAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.hex")

	token, err := CreateSoftSecret(path)
	require.NoError(t, err)

	secret, err := LoadSoftSecret(path)
	require.NoError(t, err)
	assert.Equal(t, token.Serial(), NewSoftToken(secret, 2).Serial())

	_, err = CreateSoftSecret(path)
	assert.Error(t, err, "existing secret must not be overwritten")
}

func TestLoadSoftSecret_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "not hex", content: "zz"},
		{name: "wrong length", content: "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			_, err := LoadSoftSecret(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadSoftSecret(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRegistry_Find(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token.hex")
	token, err := CreateSoftSecret(path)
	require.NoError(t, err)

	r := NewRegistry()
	_, err = r.Find(ctx, token.Serial(), 2)
	assert.ErrorIs(t, err, ErrNoProviders)

	require.True(t, r.Add(NewSoftProvider(path)))
	assert.False(t, r.Add(NewSoftProvider(path)), "duplicate family must be rejected")
	assert.True(t, r.Available())
	assert.Equal(t, []string{SoftFamily}, r.Families())

	dev, err := r.Find(ctx, token.Serial(), 2)
	require.NoError(t, err)
	assert.Equal(t, token.Serial(), dev.Serial())

	_, err = r.Find(ctx, token.Serial(), 1)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = r.Find(ctx, "deadbeef", 2)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestRegistry_ProviderFailure(t *testing.T) {
	r := NewRegistry()
	r.Add(failingProvider{})

	_, err := r.Devices(context.Background())
	assert.ErrorContains(t, err, "usb timeout")
}
