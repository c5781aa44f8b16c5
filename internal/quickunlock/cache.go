// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package quickunlock remembers database master keys so a database can be
// reopened without re-entering every factor.
//
// Entries are AES-GCM sealed and kept in an HMAC-SHA256 signed cache file under
// <dataDir>/cache. Any key change must Reset the entry for that database.
package quickunlock

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/fsutil"
)

const (
	cacheFileName = "quick_unlock.json"
	keyFileName   = ".cache_key"

	// cacheKeyLen holds a 32-byte HMAC key followed by a 32-byte sealing key.
	cacheKeyLen = 64

	cacheVersion = 1
)

var (
	// ErrNotFound indicates no entry exists for the database
	ErrNotFound = errors.New("no quick unlock entry for database")

	// ErrTampered indicates the cache file failed HMAC verification
	ErrTampered = errors.New("quick unlock cache failed integrity check")
)

// Cache is the quick-unlock store used by key changes and unlock.
type Cache interface {
	Remember(id uuid.UUID, secret []byte) error
	Recall(id uuid.UUID) ([]byte, error)
	Has(id uuid.UUID) bool
	Reset(id uuid.UUID) error
}

// signedCache is the on-disk envelope.
type signedCache struct {
	Version int    `json:"version"`
	Data    string `json:"data"`
	HMAC    string `json:"hmac"`
}

type entry struct {
	Sealed   []byte    `json:"sealed"`
	StoredAt time.Time `json:"stored_at"`
}

// FileCache is a Cache backed by a signed file in the data directory.
type FileCache struct {
	mu  sync.Mutex
	dir string
}

var _ Cache = (*FileCache)(nil)

// NewFileCache returns a cache stored under <dataDir>/cache.
func NewFileCache(dataDir string) *FileCache {
	return &FileCache{dir: filepath.Join(dataDir, "cache")}
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

// Remember seals secret and stores it for the database id.
func (c *FileCache) Remember(id uuid.UUID, secret []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.loadOrCreateKey()
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(key)

	entries, err := c.load(key)
	if err != nil {
		return err
	}

	sealed, err := crypto.Seal(secret, key[32:])
	if err != nil {
		return fmt.Errorf("failed to seal quick unlock entry: %w", err)
	}
	entries[id.String()] = entry{Sealed: sealed, StoredAt: time.Now().UTC()}
	return c.save(entries, key)
}

// Recall returns the secret remembered for id.
// Caller is responsible for zeroing the result.
func (c *FileCache) Recall(id uuid.UUID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.loadKey()
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(key)

	entries, err := c.load(key)
	if err != nil {
		return nil, err
	}
	e, ok := entries[id.String()]
	if !ok {
		return nil, ErrNotFound
	}
	secret, err := crypto.Open(e.Sealed, key[32:])
	if err != nil {
		return nil, fmt.Errorf("failed to open quick unlock entry: %w", err)
	}
	return secret, nil
}

// Has reports whether an entry exists for id.
func (c *FileCache) Has(id uuid.UUID) bool {
	secret, err := c.Recall(id)
	if err != nil {
		return false
	}
	crypto.ZeroBytes(secret)
	return true
}

// Reset drops the entry for id. Resetting a missing entry is not an error.
func (c *FileCache) Reset(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.loadKey()
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(key)

	entries, err := c.load(key)
	if err != nil {
		return err
	}
	if _, ok := entries[id.String()]; !ok {
		return nil
	}
	delete(entries, id.String())
	return c.save(entries, key)
}

func (c *FileCache) keyPath() string   { return filepath.Join(c.dir, keyFileName) }
func (c *FileCache) cachePath() string { return filepath.Join(c.dir, cacheFileName) }

// loadKey reads the cache key. A missing key means nothing was ever remembered.
func (c *FileCache) loadKey() ([]byte, error) {
	key, err := os.ReadFile(c.keyPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache key: %w", err)
	}
	if len(key) != cacheKeyLen {
		return nil, fmt.Errorf("invalid cache key length: expected %d bytes, got %d", cacheKeyLen, len(key))
	}
	return key, nil
}

func (c *FileCache) loadOrCreateKey() ([]byte, error) {
	key, err := c.loadKey()
	if !errors.Is(err, ErrNotFound) {
		return key, err
	}

	key, err = crypto.RandomBytes(cacheKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cache key: %w", err)
	}
	if err := fsutil.MkdirAll(c.dir); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := fsutil.WriteFile(c.keyPath(), key); err != nil {
		return nil, fmt.Errorf("failed to write cache key: %w", err)
	}
	// Entries sealed under a previous key can no longer be verified.
	_ = os.Remove(c.cachePath())
	return key, nil
}

func (c *FileCache) load(key []byte) (map[string]entry, error) {
	entries := make(map[string]entry)

	raw, err := os.ReadFile(c.cachePath())
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var signed signedCache
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	if signed.Version != cacheVersion {
		return nil, fmt.Errorf("unsupported cache version %d", signed.Version)
	}
	data, err := base64.StdEncoding.DecodeString(signed.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cache data: %w", err)
	}
	if err := verifyHMAC(data, signed.HMAC, key[:32]); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return entries, nil
}

func (c *FileCache) save(entries map[string]entry, key []byte) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	out, err := json.MarshalIndent(signedCache{
		Version: cacheVersion,
		Data:    base64.StdEncoding.EncodeToString(data),
		HMAC:    sign(data, key[:32]),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal signed cache: %w", err)
	}
	if err := fsutil.MkdirAll(c.dir); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return fsutil.WriteFileAtomic(c.cachePath(), out)
}

func sign(data, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(data []byte, signatureHex string, key []byte) error {
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("%w: invalid HMAC format", ErrTampered)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	if !hmac.Equal(mac.Sum(nil), signature) {
		return ErrTampered
	}
	return nil
}

// Noop is a Cache used when quick unlock is disabled.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Remember(uuid.UUID, []byte) error { return nil }
func (Noop) Recall(uuid.UUID) ([]byte, error) { return nil, ErrNotFound }
func (Noop) Has(uuid.UUID) bool               { return false }
func (Noop) Reset(uuid.UUID) error            { return nil }
