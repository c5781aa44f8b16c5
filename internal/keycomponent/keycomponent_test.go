// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keycomponent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/dbkey/internal/challenge"
	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/keys"
	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

func TestPageTransitions(t *testing.T) {
	p := NewPassword()
	assert.Equal(t, PageAddNew, p.VisiblePage())
	assert.False(t, p.ComponentAdded())

	p.SetComponentAdded(true)
	assert.Equal(t, PageLeaveOrRemove, p.VisiblePage())
	assert.True(t, p.ComponentAdded())

	p.Edit()
	assert.Equal(t, PageEdit, p.VisiblePage())

	p.CancelEdit()
	assert.Equal(t, PageLeaveOrRemove, p.VisiblePage())

	p.Remove()
	assert.Equal(t, PageAddNew, p.VisiblePage())
	assert.False(t, p.ComponentAdded())

	p.Edit()
	p.CancelEdit()
	assert.Equal(t, PageAddNew, p.VisiblePage())
}

func TestOnChange(t *testing.T) {
	p := NewPassword()
	var calls int
	p.OnChange(func() {
		// listeners may query the component
		_ = p.VisiblePage()
		calls++
	})

	p.SetComponentAdded(true)
	assert.Equal(t, 0, calls, "SetComponentAdded must not notify")

	p.Edit()
	p.Remove()
	assert.Equal(t, 2, calls)

	p.CancelEdit()
	assert.Equal(t, 2, calls)
}

func TestPassword_IsEmpty(t *testing.T) {
	p := NewPassword()
	p.SetPassword([]byte("secret"), []byte("secret"))
	assert.True(t, p.IsEmpty(), "not editing")

	p.Edit()
	assert.False(t, p.IsEmpty())

	p.SetPassword(nil, nil)
	assert.True(t, p.IsEmpty())
}

func TestPassword_Validate(t *testing.T) {
	ctx := context.Background()
	p := NewPassword()
	p.Edit()

	p.SetPassword([]byte("correct horse"), []byte("correct horse"))
	assert.NoError(t, p.Validate(ctx))

	p.SetPassword([]byte("correct horse"), []byte("correct hose"))
	err := p.Validate(ctx)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Password", verr.Component)
	assert.Equal(t, "Passwords do not match.", verr.Reason)
}

func TestPassword_ValidateReportsUnreadableRepeat(t *testing.T) {
	p := NewPassword()
	p.Edit()
	p.SetPassword([]byte("correct horse"), []byte("correct horse"))
	p.repeat.Destroy()

	err := p.Validate(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Could not read the repeated password.", verr.Reason)
	assert.ErrorIs(t, err, crypto.ErrDestroyed)
}

func TestPassword_InputIsCopied(t *testing.T) {
	pw := []byte("hunter2hunter2")
	p := NewPassword()
	p.Edit()
	p.SetPassword(pw, pw)
	for i := range pw {
		pw[i] = 0
	}

	b := keys.NewBuilder()
	require.NoError(t, p.AddToCompositeKey(context.Background(), b))
	want := keys.NewPasswordKey([]byte("hunter2hunter2"))

	got := b.Build().FindKey(keys.PasswordKeyUUID)
	require.NotNil(t, got)
	assertSameRaw(t, want, got)
}

func TestPassword_ClearedOnStateChange(t *testing.T) {
	p := NewPassword()
	p.Edit()
	p.SetPassword([]byte("abc"), []byte("abc"))
	p.SetComponentAdded(false)
	p.Edit()
	assert.True(t, p.IsEmpty())

	p.SetPassword([]byte("abc"), []byte("abc"))
	p.Remove()
	p.Edit()
	assert.True(t, p.IsEmpty())
}

func TestPassword_Quality(t *testing.T) {
	p := NewPassword()
	p.Edit()
	assert.Equal(t, passwordhealth.Bad, p.Quality())

	p.SetPassword([]byte("x7#Qv!9mZr$2Lp@8Wn&4Ks*6Ht^1Jd%3Fb"), nil)
	assert.Equal(t, passwordhealth.Excellent, p.Quality())
}

func TestKeyFile_Validate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "vault.dbkey")
	require.NoError(t, os.WriteFile(dbPath, []byte("{}"), 0600))
	keyPath := filepath.Join(dir, "vault.keyx")
	require.NoError(t, keys.CreateKeyFile(keyPath))

	tests := []struct {
		name   string
		path   string
		reason string
	}{
		{name: "empty", path: "", reason: "Please select a key file."},
		{name: "missing", path: filepath.Join(dir, "nope"), reason: "Failed to open key file."},
		{name: "directory", path: dir, reason: "The selected key file is a directory."},
		{name: "database file", path: dbPath, reason: "You cannot use your database file as a key file."},
		{name: "valid", path: keyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := NewKeyFile(dbPath, nil)
			k.Edit()
			k.SetPath(tt.path)

			err := k.Validate(ctx)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestKeyFile_AddToCompositeKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "legacy.key")
	require.NoError(t, os.WriteFile(keyPath, bytes.Repeat([]byte{0x5a}, 32), 0600))

	k := NewKeyFile("", nil)
	k.Edit()
	k.SetPath(keyPath)
	assert.False(t, k.IsEmpty())

	b := keys.NewBuilder()
	require.NoError(t, k.AddToCompositeKey(context.Background(), b))
	assert.Equal(t, keys.FormatFixedBinary, k.LastFormat())
	assert.True(t, k.LastFormat().Legacy())
	assert.NotNil(t, b.Build().FindKey(keys.FileKeyUUID))
}

func TestKeyFile_AddUnreadable(t *testing.T) {
	k := NewKeyFile("", nil)
	k.Edit()
	k.SetPath(filepath.Join(t.TempDir(), "gone.keyx"))

	err := k.AddToCompositeKey(context.Background(), keys.NewBuilder())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func newSoftRegistry(t *testing.T) (*challenge.Registry, *challenge.SoftToken) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.hex")
	token, err := challenge.CreateSoftSecret(path)
	require.NoError(t, err)

	r := challenge.NewRegistry()
	require.True(t, r.Add(challenge.NewSoftProvider(path)))
	return r, token
}

func TestChallengeResponse_Validate(t *testing.T) {
	ctx := context.Background()
	r, token := newSoftRegistry(t)

	c := NewChallengeResponse(r)
	c.Edit()
	assert.True(t, c.IsEmpty())

	var verr *ValidationError
	require.ErrorAs(t, c.Validate(ctx), &verr)
	assert.Equal(t, "No hardware key selected.", verr.Reason)

	c.SelectDevice("deadbeef", 2)
	require.ErrorAs(t, c.Validate(ctx), &verr)
	assert.Contains(t, verr.Reason, "Could not find hardware key with serial deadbeef")

	c.SelectDevice(token.Serial(), token.Slot())
	assert.False(t, c.IsEmpty())
	assert.NoError(t, c.Validate(ctx))

	b := keys.NewBuilder()
	require.NoError(t, c.AddToCompositeKey(ctx, b))
	cr := b.Build().FindChallengeResponseKey(keys.ChallengeResponseKeyUUID)
	require.NotNil(t, cr)
	assert.Equal(t, token.Serial(), cr.Device().Serial())
}

func TestChallengeResponse_NoProviders(t *testing.T) {
	c := NewChallengeResponse(challenge.NewRegistry())
	c.Edit()
	c.SelectDevice("00000000", 2)

	err := c.Validate(context.Background())
	assert.ErrorIs(t, err, challenge.ErrNoProviders)
}

func assertSameRaw(t *testing.T, a, b keys.Key) {
	t.Helper()
	var ra, rb []byte
	require.NoError(t, a.WithRawKey(func(raw []byte) error {
		ra = append([]byte(nil), raw...)
		return nil
	}))
	require.NoError(t, b.WithRawKey(func(raw []byte) error {
		rb = append([]byte(nil), raw...)
		return nil
	}))
	assert.Equal(t, ra, rb)
}
