// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package challenge

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is the token challenge-response primitive
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/aplane-algo/dbkey/internal/fsutil"
)

// SoftSecretLen is the HMAC-SHA1 secret length used by token slots.
const SoftSecretLen = 20

// SoftFamily is the provider family of file-backed software tokens.
const SoftFamily = "soft"

// SoftToken emulates an HMAC-SHA1 challenge-response slot in software.
// Useful for headless machines and tests; it offers no hardware protection.
type SoftToken struct {
	secret []byte
	serial string
	slot   int
}

// NewSoftToken creates a token from a raw secret. The serial is derived from the secret.
func NewSoftToken(secret []byte, slot int) *SoftToken {
	sum := sha256.Sum256(secret)
	s := make([]byte, len(secret))
	copy(s, secret)
	return &SoftToken{
		secret: s,
		serial: hex.EncodeToString(sum[:4]),
		slot:   slot,
	}
}

func (t *SoftToken) Serial() string { return t.serial }
func (t *SoftToken) Slot() int      { return t.slot }

func (t *SoftToken) Name() string {
	return fmt.Sprintf("Soft token %s [slot %d]", t.serial, t.slot)
}

// Challenge returns HMAC-SHA1(secret, challenge).
func (t *SoftToken) Challenge(ctx context.Context, challenge []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mac := hmac.New(sha1.New, t.secret)
	mac.Write(challenge)
	return mac.Sum(nil), nil
}

// SoftProvider serves soft tokens loaded from secret files.
type SoftProvider struct {
	paths []string
	slot  int
}

// NewSoftProvider creates a provider for the given secret files.
// Every token is exposed on slot 2, the conventional challenge-response slot.
func NewSoftProvider(paths ...string) *SoftProvider {
	return &SoftProvider{paths: paths, slot: 2}
}

func (p *SoftProvider) Family() string { return SoftFamily }

// Devices loads each secret file. Missing files are reported as errors,
// the same way an unplugged token would fail enumeration.
func (p *SoftProvider) Devices(ctx context.Context) ([]Device, error) {
	devices := make([]Device, 0, len(p.paths))
	for _, path := range p.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		secret, err := LoadSoftSecret(path)
		if err != nil {
			return nil, err
		}
		devices = append(devices, NewSoftToken(secret, p.slot))
	}
	return devices, nil
}

// LoadSoftSecret reads a hex-encoded token secret.
func LoadSoftSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token secret: %w", err)
	}
	secret, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid token secret in %s: %w", path, err)
	}
	if len(secret) != SoftSecretLen {
		return nil, fmt.Errorf("invalid token secret length in %s: expected %d bytes, got %d", path, SoftSecretLen, len(secret))
	}
	return secret, nil
}

// CreateSoftSecret writes a new random token secret to path and returns the token.
func CreateSoftSecret(path string) (*SoftToken, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("token secret %s already exists", path)
	}
	secret := make([]byte, SoftSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	if err := fsutil.WriteFile(path, []byte(hex.EncodeToString(secret)+"\n")); err != nil {
		return nil, fmt.Errorf("failed to write token secret: %w", err)
	}
	return NewSoftToken(secret, 2), nil
}
