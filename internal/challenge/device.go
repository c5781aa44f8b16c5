// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package challenge abstracts challenge-response hardware tokens.
//
// Token support is optional. Providers are added to a Registry at startup; when
// none is added, the challenge-response factor is simply not offered.
package challenge

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound indicates no registered provider exposes the requested device
	ErrDeviceNotFound = errors.New("challenge-response device not found")

	// ErrNoProviders indicates challenge-response support is not available
	ErrNoProviders = errors.New("no challenge-response providers registered")
)

// Device is one challenge-response capable token slot.
type Device interface {
	// Serial identifies the physical token.
	Serial() string

	// Slot is the configuration slot used on the token.
	Slot() int

	// Name is a human readable description.
	Name() string

	// Challenge sends challenge to the token and returns its response.
	// Hardware implementations may block until the user touches the token.
	Challenge(ctx context.Context, challenge []byte) ([]byte, error)
}

// Provider enumerates devices of one token family.
type Provider interface {
	// Family names the token family ("yubikey", "soft").
	Family() string

	// Devices lists the currently connected devices.
	Devices(ctx context.Context) ([]Device, error)
}

// DeviceID formats a serial/slot pair as "serial:slot".
func DeviceID(serial string, slot int) string {
	return fmt.Sprintf("%s:%d", serial, slot)
}
