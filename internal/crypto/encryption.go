// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (OWASP recommended)
const (
	DefaultArgon2Time    = 1         // iterations
	DefaultArgon2Memory  = 64 * 1024 // 64 MB, in KiB
	DefaultArgon2Threads = 4         // parallelism
	keyLen               = 32        // AES-256
)

// SaltLen is the length of transform salts and master seeds.
const SaltLen = 32

// checkPlaintext is the known value sealed into a check field.
const checkPlaintext = "DBKEY_OK"

// ErrCheckMismatch indicates that a key did not open a check value.
var ErrCheckMismatch = errors.New("key does not match check value")

// KDFParams configures Argon2id.
type KDFParams struct {
	Time    uint32 `json:"time" yaml:"time" description:"Argon2id iterations" default:"1"`
	Memory  uint32 `json:"memory_kib" yaml:"memory_kib" description:"Argon2id memory in KiB" default:"65536"`
	Threads uint8  `json:"threads" yaml:"threads" description:"Argon2id parallelism" default:"4"`
}

// DefaultKDFParams returns the production Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    DefaultArgon2Time,
		Memory:  DefaultArgon2Memory,
		Threads: DefaultArgon2Threads,
	}
}

// Normalize fills zero fields with defaults.
func (p KDFParams) Normalize() KDFParams {
	d := DefaultKDFParams()
	if p.Time == 0 {
		p.Time = d.Time
	}
	if p.Memory == 0 {
		p.Memory = d.Memory
	}
	if p.Threads == 0 {
		p.Threads = d.Threads
	}
	return p
}

// DeriveKey derives a 32-byte sealing key from secret and salt using Argon2id.
// Caller is responsible for zeroing the returned key when done.
func DeriveKey(secret, salt []byte, params KDFParams) []byte {
	p := params.Normalize()
	return argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, keyLen)
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// Seal encrypts plaintext with AES-256-GCM.
// Output layout: nonce (12 bytes) + ciphertext + tag (16 bytes).
func Seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func Open(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed data too short")
	}

	nonce := sealed[:gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, sealed[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}

// NewCheck seals the known check plaintext with key and returns it base64-encoded.
func NewCheck(key []byte) (string, error) {
	sealed, err := Seal([]byte(checkPlaintext), key)
	if err != nil {
		return "", fmt.Errorf("failed to create check value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// VerifyCheck reports whether key opens a check value produced by NewCheck.
func VerifyCheck(check string, key []byte) error {
	sealed, err := base64.StdEncoding.DecodeString(check)
	if err != nil {
		return fmt.Errorf("failed to decode check value: %w", err)
	}

	plaintext, err := Open(sealed, key)
	if err != nil {
		return ErrCheckMismatch
	}
	if string(plaintext) != checkPlaintext {
		return ErrCheckMismatch
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
