// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keys defines database key factors and the composite key built from them.
//
// Factors are shared by handle: a composite key built from an older one holds the
// very same factor values, so identity can be checked with ==. Nothing in this
// package re-derives a factor that already exists.
package keys

import (
	"crypto/sha256"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/crypto"
)

// Kind tags the authentication factor a key or component represents.
type Kind int

const (
	KindPassword Kind = iota
	KindFile
	KindChallengeResponse
)

func (k Kind) String() string {
	switch k {
	case KindPassword:
		return "password"
	case KindFile:
		return "keyfile"
	case KindChallengeResponse:
		return "challenge-response"
	default:
		return "unknown"
	}
}

// Type identifiers. One fixed identifier per factor kind.
var (
	PasswordKeyUUID          = uuid.MustParse("77e90411-303e-43d3-8b9f-4b8a0b23e0c6")
	FileKeyUUID              = uuid.MustParse("a584cbc4-c9b4-437e-81bb-362ca9709273")
	ChallengeResponseKeyUUID = uuid.MustParse("e092495c-e77d-498b-84a1-05ae0d955508")
)

// TypeID returns the fixed type identifier for a kind.
func TypeID(k Kind) uuid.UUID {
	switch k {
	case KindPassword:
		return PasswordKeyUUID
	case KindFile:
		return FileKeyUUID
	default:
		return ChallengeResponseKeyUUID
	}
}

// Key is one static contributing secret of a composite key.
type Key interface {
	// UUID is the type identifier of the factor.
	UUID() uuid.UUID

	// Kind is the factor kind.
	Kind() Kind

	// WithRawKey provides scoped access to the derived 32-byte factor key.
	WithRawKey(fn func([]byte) error) error
}

// PasswordKey is a factor derived from a master password.
type PasswordKey struct {
	raw *crypto.Secret
}

// NewPasswordKey derives a password factor as SHA-256 of the UTF-8 password bytes.
func NewPasswordKey(password []byte) *PasswordKey {
	sum := sha256.Sum256(password)
	k := &PasswordKey{raw: crypto.NewSecret(sum[:])}
	crypto.ZeroBytes(sum[:])
	return k
}

func (k *PasswordKey) UUID() uuid.UUID { return PasswordKeyUUID }
func (k *PasswordKey) Kind() Kind      { return KindPassword }

func (k *PasswordKey) WithRawKey(fn func([]byte) error) error {
	return k.raw.WithBytes(fn)
}

// Destroy zeroes the derived key.
func (k *PasswordKey) Destroy() {
	k.raw.Destroy()
}
