// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package database holds a database's composite key and its on-disk header.
//
// The header never stores key material. It records the random master seed
// used to challenge hardware tokens, the Argon2id salt and parameters, and an
// AES-GCM check value sealed under the derived master key. Opening a database
// re-derives the master key from the supplied composite key and verifies it
// against the check value.
package database

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/crypto"
	"github.com/aplane-algo/dbkey/internal/fsutil"
	"github.com/aplane-algo/dbkey/internal/keys"
)

// FileExtension is the conventional database file suffix.
const FileExtension = ".dbkey"

var (
	// ErrEmptyKey indicates an attempt to install a key with no factors
	ErrEmptyKey = errors.New("composite key has no factors")

	// ErrInvalidKey indicates the composite key does not open the database
	ErrInvalidKey = errors.New("invalid credentials")

	// ErrStale indicates the database file was changed by another process
	ErrStale = errors.New("database file was modified externally")

	// ErrExists indicates Create was called on an existing file
	ErrExists = errors.New("database file already exists")
)

// SetKeyOptions controls how SetKey installs a new key.
type SetKeyOptions struct {
	// KeyChange records the change time of the credentials.
	KeyChange bool

	// KeepOldTransform reuses the existing KDF salt instead of drawing a new one.
	KeepOldTransform bool

	// KeepOldBackup copies the previous header to <path>.bak before writing.
	KeepOldBackup bool
}

// Option configures a Database.
type Option func(*Database)

// WithKDF sets the Argon2id parameters used for new keys. Without it an
// opened database keeps the parameters in its header.
func WithKDF(p crypto.KDFParams) Option {
	return func(d *Database) { d.kdf = p.Normalize() }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Database) { d.logger = l }
}

// Database is an unlocked database. It is safe for concurrent use.
type Database struct {
	mu        sync.Mutex
	path      string
	header    Header
	key       *keys.CompositeKey
	masterKey []byte
	modified  bool
	stale     atomic.Bool

	kdf    crypto.KDFParams
	logger *slog.Logger
}

func newDatabase(path string, kdf crypto.KDFParams, opts []Option) *Database {
	d := &Database{
		path:   path,
		kdf:    kdf,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.header = Header{
		Version:    HeaderVersion,
		PublicUUID: uuid.New(),
		KDF:        d.kdf,
	}
	return d
}

// New returns an in-memory database with no key.
func New(opts ...Option) *Database {
	return newDatabase("", crypto.DefaultKDFParams(), opts)
}

// Create prepares a new database at path. Nothing is written until SetKey.
func Create(path string, opts ...Option) (*Database, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}
	return newDatabase(path, crypto.DefaultKDFParams(), opts), nil
}

// Open unlocks the database at path with key.
func Open(ctx context.Context, path string, key *keys.CompositeKey, opts ...Option) (*Database, error) {
	if key.IsEmpty() {
		return nil, ErrEmptyKey
	}
	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}

	master, err := deriveMasterKey(ctx, key, h.MasterSeed, h.TransformSalt, h.KDF)
	if err != nil {
		return nil, err
	}
	if err := crypto.VerifyCheck(h.Check, master); err != nil {
		crypto.ZeroBytes(master)
		if errors.Is(err, crypto.ErrCheckMismatch) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}

	d := newDatabase(path, h.KDF, opts)
	d.header = *h
	d.key = key
	d.masterKey = master
	return d, nil
}

// OpenWithMasterKey unlocks the database with a previously derived master key.
// The resulting database has no composite key and cannot be rekeyed.
func OpenWithMasterKey(path string, master []byte, opts ...Option) (*Database, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	if err := crypto.VerifyCheck(h.Check, master); err != nil {
		if errors.Is(err, crypto.ErrCheckMismatch) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}

	d := newDatabase(path, h.KDF, opts)
	d.header = *h
	d.masterKey = append([]byte(nil), master...)
	return d, nil
}

// Path returns the database file, or "" for an in-memory database.
func (d *Database) Path() string {
	return d.path
}

// Key returns the current composite key, or nil if none is set.
func (d *Database) Key() *keys.CompositeKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.key
}

// PublicUUID identifies the database without revealing anything about its key.
func (d *Database) PublicUUID() uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header.PublicUUID
}

// Header returns a copy of the current header.
func (d *Database) Header() Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header.clone()
}

// MasterKey returns a copy of the derived master key, or nil when locked.
// Caller is responsible for zeroing the result.
func (d *Database) MasterKey() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.masterKey == nil {
		return nil
	}
	return append([]byte(nil), d.masterKey...)
}

// MarkModified flags the database as having unsaved changes.
func (d *Database) MarkModified() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modified = true
	d.header.Modified = time.Now().UTC()
}

// IsModified reports whether MarkModified was called since the last write.
func (d *Database) IsModified() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modified
}

// Stale reports whether another process rewrote the database file.
func (d *Database) Stale() bool {
	return d.stale.Load()
}

// SetKey installs key as the database key and, for a file-backed database,
// rewrites the header. The old key stays in place if anything fails.
func (d *Database) SetKey(ctx context.Context, key *keys.CompositeKey, opts SetKeyOptions) error {
	if key.IsEmpty() {
		return ErrEmptyKey
	}
	if d.stale.Load() {
		return ErrStale
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.header.clone()
	if !opts.KeepOldTransform || len(next.TransformSalt) == 0 {
		salt, err := crypto.RandomBytes(crypto.SaltLen)
		if err != nil {
			return err
		}
		next.TransformSalt = salt
		next.KDF = d.kdf
	}
	seed, err := crypto.RandomBytes(crypto.SaltLen)
	if err != nil {
		return err
	}
	next.MasterSeed = seed

	master, err := deriveMasterKey(ctx, key, next.MasterSeed, next.TransformSalt, next.KDF)
	if err != nil {
		return err
	}
	check, err := crypto.NewCheck(master)
	if err != nil {
		crypto.ZeroBytes(master)
		return err
	}
	next.Check = check
	next.Factors = factorNames(key)
	if opts.KeyChange {
		next.KeyChanged = time.Now().UTC()
	}

	if d.path != "" {
		if err := d.write(next, opts.KeepOldBackup); err != nil {
			crypto.ZeroBytes(master)
			return err
		}
		d.modified = false
	}

	crypto.ZeroBytes(d.masterKey)
	d.masterKey = master
	d.header = next
	d.key = key

	d.logger.Debug("database key installed",
		"database", d.header.PublicUUID.String(),
		"factors", len(next.Factors),
		"key_change", opts.KeyChange)
	return nil
}

func (d *Database) write(h Header, keepBackup bool) error {
	data, err := h.marshal()
	if err != nil {
		return err
	}
	if keepBackup {
		if _, err := os.Stat(d.path); err == nil {
			if err := fsutil.CopyFile(d.path, d.path+".bak"); err != nil {
				return fmt.Errorf("failed to back up database: %w", err)
			}
		}
	}
	if err := fsutil.WriteFileAtomic(d.path, data); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}
	return nil
}

// deriveMasterKey computes Argon2id(SHA-256(raw || challenge), salt).
func deriveMasterKey(ctx context.Context, key *keys.CompositeKey, seed, salt []byte, kdf crypto.KDFParams) ([]byte, error) {
	raw, err := key.RawKey()
	if err != nil {
		return nil, fmt.Errorf("failed to read key factors: %w", err)
	}
	defer crypto.ZeroBytes(raw)

	resp, err := key.Challenge(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("challenge-response failed: %w", err)
	}
	defer crypto.ZeroBytes(resp)

	h := sha256.New()
	h.Write(raw)
	h.Write(resp)
	secret := h.Sum(nil)
	defer crypto.ZeroBytes(secret)

	return crypto.DeriveKey(secret, salt, kdf), nil
}

func factorNames(key *keys.CompositeKey) []string {
	kinds := key.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
