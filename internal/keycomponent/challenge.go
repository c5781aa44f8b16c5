// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keycomponent

import (
	"context"
	"errors"
	"fmt"

	"github.com/aplane-algo/dbkey/internal/challenge"
	"github.com/aplane-algo/dbkey/internal/keys"
)

// ChallengeResponse edits the hardware token factor.
type ChallengeResponse struct {
	base
	registry *challenge.Registry
	serial   string
	slot     int
}

// NewChallengeResponse creates a token component backed by registry.
func NewChallengeResponse(registry *challenge.Registry) *ChallengeResponse {
	return &ChallengeResponse{
		base:     newBase("Challenge-Response", keys.KindChallengeResponse),
		registry: registry,
	}
}

// SelectDevice picks the token slot to bind.
func (c *ChallengeResponse) SelectDevice(serial string, slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serial = serial
	c.slot = slot
}

func (c *ChallengeResponse) selection() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serial, c.slot
}

func (c *ChallengeResponse) IsEmpty() bool {
	serial, _ := c.selection()
	return c.VisiblePage() != PageEdit || serial == ""
}

func (c *ChallengeResponse) Validate(ctx context.Context) error {
	serial, slot := c.selection()
	if serial == "" {
		return c.invalid("No hardware key selected.", nil)
	}
	if _, err := c.registry.Find(ctx, serial, slot); err != nil {
		return c.lookupError(serial, slot, err)
	}
	return nil
}

func (c *ChallengeResponse) AddToCompositeKey(ctx context.Context, b *keys.Builder) error {
	serial, slot := c.selection()
	dev, err := c.registry.Find(ctx, serial, slot)
	if err != nil {
		return c.lookupError(serial, slot, err)
	}
	b.AddChallengeResponseKey(keys.NewChallengeResponseKey(dev))
	return nil
}

func (c *ChallengeResponse) lookupError(serial string, slot int, err error) *ValidationError {
	switch {
	case errors.Is(err, challenge.ErrNoProviders):
		return c.invalid("Hardware key support is not available.", err)
	case errors.Is(err, challenge.ErrDeviceNotFound):
		return c.invalid(fmt.Sprintf("Could not find hardware key with serial %s (slot %d).", serial, slot), nil)
	default:
		return c.invalid("Failed to communicate with the hardware key.", err)
	}
}
