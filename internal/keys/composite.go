// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keys

import (
	"context"
	"crypto/sha256"
	"slices"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/crypto"
)

// CompositeKey is the full database key: static factors in insertion order
// plus challenge-response factors. It is immutable once built.
type CompositeKey struct {
	keys   []Key
	crKeys []*ChallengeResponseKey
}

// Keys returns the static factors. The slice is a copy; the elements are shared handles.
func (c *CompositeKey) Keys() []Key {
	if c == nil {
		return nil
	}
	return slices.Clone(c.keys)
}

// ChallengeResponseKeys returns the challenge-response factors.
func (c *CompositeKey) ChallengeResponseKeys() []*ChallengeResponseKey {
	if c == nil {
		return nil
	}
	return slices.Clone(c.crKeys)
}

// IsEmpty reports whether the key has no factor of any kind. Safe on nil.
func (c *CompositeKey) IsEmpty() bool {
	return c == nil || (len(c.keys) == 0 && len(c.crKeys) == 0)
}

// FindKey returns the first static factor with the given type identifier.
func (c *CompositeKey) FindKey(id uuid.UUID) Key {
	if c == nil {
		return nil
	}
	for _, k := range c.keys {
		if k.UUID() == id {
			return k
		}
	}
	return nil
}

// FindChallengeResponseKey returns the first challenge-response factor with the given type identifier.
func (c *CompositeKey) FindChallengeResponseKey(id uuid.UUID) *ChallengeResponseKey {
	if c == nil {
		return nil
	}
	for _, k := range c.crKeys {
		if k.UUID() == id {
			return k
		}
	}
	return nil
}

// Kinds lists factor kinds in key order, static factors first.
func (c *CompositeKey) Kinds() []Kind {
	if c == nil {
		return nil
	}
	kinds := make([]Kind, 0, len(c.keys)+len(c.crKeys))
	for _, k := range c.keys {
		kinds = append(kinds, k.Kind())
	}
	for _, k := range c.crKeys {
		kinds = append(kinds, k.Kind())
	}
	return kinds
}

// RawKey hashes the static factors together: SHA-256(raw1 || raw2 || ...).
// Caller is responsible for zeroing the result.
func (c *CompositeKey) RawKey() ([]byte, error) {
	h := sha256.New()
	for _, k := range c.keys {
		if err := k.WithRawKey(func(raw []byte) error {
			h.Write(raw)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

// Challenge collects the responses of every challenge-response factor to seed
// and hashes them together. Returns nil when there are no such factors.
func (c *CompositeKey) Challenge(ctx context.Context, seed []byte) ([]byte, error) {
	if len(c.crKeys) == 0 {
		return nil, nil
	}
	h := sha256.New()
	for _, k := range c.crKeys {
		resp, err := k.Challenge(ctx, seed)
		if err != nil {
			return nil, err
		}
		h.Write(resp)
		crypto.ZeroBytes(resp)
	}
	return h.Sum(nil), nil
}

// Builder accumulates factors into a new CompositeKey. It performs no validation;
// components validate themselves before contributing.
type Builder struct {
	keys   []Key
	crKeys []*ChallengeResponseKey
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddKey attaches a static factor by handle.
func (b *Builder) AddKey(k Key) {
	b.keys = append(b.keys, k)
}

// AddChallengeResponseKey attaches a challenge-response factor by handle.
func (b *Builder) AddChallengeResponseKey(k *ChallengeResponseKey) {
	b.crKeys = append(b.crKeys, k)
}

// IsEmpty reports whether nothing has been added.
func (b *Builder) IsEmpty() bool {
	return len(b.keys) == 0 && len(b.crKeys) == 0
}

// Build returns the composite key. The builder may be reused afterwards
// without affecting the returned key.
func (b *Builder) Build() *CompositeKey {
	return &CompositeKey{
		keys:   slices.Clone(b.keys),
		crKeys: slices.Clone(b.crKeys),
	}
}

// Discard zeroes the static factors added to the builder that keep does not
// hold and empties the builder. Factors carried over from keep stay usable.
func (b *Builder) Discard(keep *CompositeKey) {
	for _, k := range b.keys {
		if keep.holds(k) {
			continue
		}
		if d, ok := k.(interface{ Destroy() }); ok {
			d.Destroy()
		}
	}
	b.keys, b.crKeys = nil, nil
}

func (c *CompositeKey) holds(k Key) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.keys, k)
}
