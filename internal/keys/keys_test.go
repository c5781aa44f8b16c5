// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keys

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/dbkey/internal/challenge"
	"github.com/aplane-algo/dbkey/internal/crypto"
)

func rawOf(t *testing.T, k Key) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, k.WithRawKey(func(b []byte) error {
		out = append(out, b...)
		return nil
	}))
	return out
}

func TestPasswordKey(t *testing.T) {
	k := NewPasswordKey([]byte("Tr0ub4dor&3"))
	want := sha256.Sum256([]byte("Tr0ub4dor&3"))

	assert.Equal(t, want[:], rawOf(t, k))
	assert.Equal(t, PasswordKeyUUID, k.UUID())
	assert.Equal(t, KindPassword, k.Kind())

	k.Destroy()
	assert.ErrorIs(t, k.WithRawKey(func([]byte) error { return nil }), crypto.ErrDestroyed)
}

func TestParseFileKey(t *testing.T) {
	fixed := bytes.Repeat([]byte{0x5a}, 32)
	arbitrary := []byte("any file content at all, of any length")
	arbitrarySum := sha256.Sum256(arbitrary)

	v1Doc := `<?xml version="1.0" encoding="utf-8"?>
<KeyFile><Meta><Version>1.00</Version></Meta><Key><Data>` + base64.StdEncoding.EncodeToString(fixed) + `</Data></Key></KeyFile>`

	tests := []struct {
		name       string
		data       []byte
		wantRaw    []byte
		wantFormat FileFormat
	}{
		{name: "fixed binary", data: fixed, wantRaw: fixed, wantFormat: FormatFixedBinary},
		{name: "fixed hex", data: []byte(hex.EncodeToString(fixed)), wantRaw: fixed, wantFormat: FormatFixedHex},
		{name: "hashed", data: arbitrary, wantRaw: arbitrarySum[:], wantFormat: FormatHashed},
		{name: "xml v2", data: FormatXMLv2KeyFile(fixed), wantRaw: fixed, wantFormat: FormatXMLv2},
		{name: "xml v1", data: []byte(v1Doc), wantRaw: fixed, wantFormat: FormatXMLv1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, format, err := ParseFileKey(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRaw, raw)
			assert.Equal(t, tt.wantFormat, format)
		})
	}
}

func TestParseFileKey_Errors(t *testing.T) {
	_, _, err := ParseFileKey(nil)
	assert.ErrorIs(t, err, ErrEmptyKeyFile)

	doc := string(FormatXMLv2KeyFile(bytes.Repeat([]byte{0x01}, 32)))
	start := strings.Index(doc, `Hash="`) + len(`Hash="`)
	tampered := doc[:start] + "00000000" + doc[start+8:]
	_, _, err = ParseFileKey([]byte(tampered))
	assert.ErrorIs(t, err, ErrKeyFileHash)
}

func TestParseFileKey_MalformedXMLFallsBackToHash(t *testing.T) {
	data := []byte("<?xml this is not really xml")
	sum := sha256.Sum256(data)

	raw, format, err := ParseFileKey(data)
	require.NoError(t, err)
	assert.Equal(t, FormatHashed, format)
	assert.Equal(t, sum[:], raw)
}

func TestFileFormat_Legacy(t *testing.T) {
	assert.False(t, FormatXMLv2.Legacy())
	assert.False(t, FormatHashed.Legacy())
	assert.True(t, FormatXMLv1.Legacy())
	assert.True(t, FormatFixedBinary.Legacy())
	assert.True(t, FormatFixedHex.Legacy())
}

func TestCreateAndLoadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.keyx")

	require.NoError(t, CreateKeyFile(path))
	assert.Error(t, CreateKeyFile(path), "existing key file must not be overwritten")

	k1, err := LoadFileKey(path)
	require.NoError(t, err)
	k2, err := LoadFileKey(path)
	require.NoError(t, err)

	assert.Equal(t, FormatXMLv2, k1.Format())
	assert.Equal(t, path, k1.Path())
	assert.Equal(t, FileKeyUUID, k1.UUID())
	assert.Len(t, rawOf(t, k1), 32)
	assert.Equal(t, rawOf(t, k1), rawOf(t, k2))
}

func TestLoadFileKey_Missing(t *testing.T) {
	_, err := LoadFileKey(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuilder_SharesHandles(t *testing.T) {
	pw := NewPasswordKey([]byte("pw"))
	token := challenge.NewSoftToken(bytes.Repeat([]byte{0x02}, challenge.SoftSecretLen), 2)
	cr := NewChallengeResponseKey(token)

	b := NewBuilder()
	assert.True(t, b.IsEmpty())
	b.AddKey(pw)
	b.AddChallengeResponseKey(cr)
	assert.False(t, b.IsEmpty())

	key := b.Build()
	require.Len(t, key.Keys(), 1)
	require.Len(t, key.ChallengeResponseKeys(), 1)
	assert.Same(t, pw, key.Keys()[0].(*PasswordKey))
	assert.Same(t, cr, key.ChallengeResponseKeys()[0])

	// Later builder mutations do not leak into the built key.
	b.AddKey(NewPasswordKey([]byte("other")))
	assert.Len(t, key.Keys(), 1)

	assert.Same(t, pw, key.FindKey(PasswordKeyUUID).(*PasswordKey))
	assert.Nil(t, key.FindKey(FileKeyUUID))
	assert.Same(t, cr, key.FindChallengeResponseKey(ChallengeResponseKeyUUID))
	assert.Equal(t, []Kind{KindPassword, KindChallengeResponse}, key.Kinds())
}

func TestBuilder_DiscardKeepsCarriedFactors(t *testing.T) {
	kept := NewPasswordKey([]byte("kept"))
	old := NewBuilder()
	old.AddKey(kept)
	current := old.Build()

	fresh := NewPasswordKey([]byte("fresh"))
	b := NewBuilder()
	b.AddKey(fresh)
	b.AddKey(kept)
	b.Discard(current)

	assert.True(t, b.IsEmpty())
	assert.ErrorIs(t, fresh.WithRawKey(func([]byte) error { return nil }), crypto.ErrDestroyed)
	want := sha256.Sum256([]byte("kept"))
	assert.Equal(t, want[:], rawOf(t, kept))

	// Nothing is shared with a nil key.
	other := NewPasswordKey([]byte("other"))
	b.AddKey(other)
	b.Discard(nil)
	assert.ErrorIs(t, other.WithRawKey(func([]byte) error { return nil }), crypto.ErrDestroyed)
}

func TestCompositeKey_Nil(t *testing.T) {
	var key *CompositeKey
	assert.True(t, key.IsEmpty())
	assert.Nil(t, key.Keys())
	assert.Nil(t, key.ChallengeResponseKeys())
	assert.Nil(t, key.FindKey(PasswordKeyUUID))
	assert.True(t, NewBuilder().Build().IsEmpty())
}

func TestCompositeKey_RawKeyAndChallenge(t *testing.T) {
	ctx := context.Background()
	pw := NewPasswordKey([]byte("pw"))

	b := NewBuilder()
	b.AddKey(pw)
	onlyPassword := b.Build()

	raw, err := onlyPassword.RawKey()
	require.NoError(t, err)
	inner := sha256.Sum256([]byte("pw"))
	outer := sha256.Sum256(inner[:])
	assert.Equal(t, outer[:], raw)

	resp, err := onlyPassword.Challenge(ctx, []byte("seed"))
	require.NoError(t, err)
	assert.Nil(t, resp)

	token := challenge.NewSoftToken(bytes.Repeat([]byte{0x03}, challenge.SoftSecretLen), 2)
	b.AddChallengeResponseKey(NewChallengeResponseKey(token))
	withToken := b.Build()

	r1, err := withToken.Challenge(ctx, []byte("seed"))
	require.NoError(t, err)
	r2, err := withToken.Challenge(ctx, []byte("seed2"))
	require.NoError(t, err)
	assert.Len(t, r1, 32)
	assert.NotEqual(t, r1, r2)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "password", KindPassword.String())
	assert.Equal(t, "keyfile", KindFile.String())
	assert.Equal(t, "challenge-response", KindChallengeResponse.String())
	assert.Equal(t, FileKeyUUID, TypeID(KindFile))
	assert.Equal(t, ChallengeResponseKeyUUID, TypeID(KindChallengeResponse))
}
