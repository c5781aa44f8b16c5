// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/crypto"
)

// HeaderVersion is the current header format version.
const HeaderVersion = 1

// Header is the on-disk database header.
type Header struct {
	Version       int              `json:"version"`
	PublicUUID    uuid.UUID        `json:"public_uuid"`
	MasterSeed    []byte           `json:"master_seed"`
	TransformSalt []byte           `json:"transform_salt"`
	KDF           crypto.KDFParams `json:"kdf"`
	Check         string           `json:"check"`
	Factors       []string         `json:"factors"`
	KeyChanged    time.Time        `json:"key_changed,omitzero"`
	Modified      time.Time        `json:"modified,omitzero"`
}

// ReadHeader loads the header at path without unlocking the database.
func ReadHeader(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database: %w", err)
	}
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse database header: %w", err)
	}
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("invalid database header in %s: %w", path, err)
	}
	return &h, nil
}

func (h *Header) validate() error {
	switch {
	case h.Version != HeaderVersion:
		return fmt.Errorf("unsupported version %d", h.Version)
	case h.PublicUUID == uuid.Nil:
		return errors.New("missing public_uuid")
	case len(h.TransformSalt) == 0:
		return errors.New("missing transform_salt")
	case h.Check == "":
		return errors.New("missing check")
	}
	return nil
}

func (h Header) marshal() ([]byte, error) {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode database header: %w", err)
	}
	return append(data, '\n'), nil
}

func (h Header) clone() Header {
	h.MasterSeed = slices.Clone(h.MasterSeed)
	h.TransformSalt = slices.Clone(h.TransformSalt)
	h.Factors = slices.Clone(h.Factors)
	return h
}
