// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"
	"sync"
)

// ErrDestroyed is returned when a destroyed Secret is accessed.
var ErrDestroyed = errors.New("secret has been destroyed")

// ZeroBytes securely overwrites a byte slice with zeros
// Uses constant-time operation to prevent compiler optimization
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// Secret holds sensitive bytes (passwords, derived factor keys) with scoped access
// and explicit destruction. A Secret is shared by pointer; copying the struct is a bug.
type Secret struct {
	data      []byte
	destroyed bool
	lock      sync.RWMutex
}

// NewSecret copies b into a new Secret.
// The input bytes are copied, so the caller can safely zero the original.
func NewSecret(b []byte) *Secret {
	if b == nil {
		return &Secret{}
	}
	data := make([]byte, len(b))
	copy(data, b)
	return &Secret{data: data}
}

// WithBytes provides scoped access to the underlying bytes without copying.
// The callback must not retain the slice.
func (s *Secret) WithBytes(fn func([]byte) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.destroyed {
		return ErrDestroyed
	}
	return fn(s.data)
}

// Equal compares the secret with b in constant time.
func (s *Secret) Equal(b []byte) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return subtle.ConstantTimeCompare(s.data, b) == 1
}

// Len returns the length of the secret.
func (s *Secret) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.data)
}

// IsEmpty returns true if the secret is empty or destroyed.
func (s *Secret) IsEmpty() bool {
	return s.Len() == 0
}

// Destroy zeroes the secret. The Secret must not be used afterwards.
func (s *Secret) Destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()
	ZeroBytes(s.data)
	s.data = nil
	s.destroyed = true
}
