// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keys

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/challenge"
)

// ChallengeResponseKey is a factor whose secret lives on a token.
// It contributes a response to a challenge instead of a static raw key.
type ChallengeResponseKey struct {
	device challenge.Device
}

// NewChallengeResponseKey binds a factor to a token slot.
func NewChallengeResponseKey(device challenge.Device) *ChallengeResponseKey {
	return &ChallengeResponseKey{device: device}
}

func (k *ChallengeResponseKey) UUID() uuid.UUID { return ChallengeResponseKeyUUID }
func (k *ChallengeResponseKey) Kind() Kind      { return KindChallengeResponse }

// Device returns the bound token slot.
func (k *ChallengeResponseKey) Device() challenge.Device { return k.device }

// Challenge asks the token for its response to seed. Blocks while the token
// waits for user presence; there is no way to abort an exchange in flight
// other than ctx, which is only checked by devices that support it.
func (k *ChallengeResponseKey) Challenge(ctx context.Context, seed []byte) ([]byte, error) {
	resp, err := k.device.Challenge(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("challenge-response with %s failed: %w", k.device.Name(), err)
	}
	return resp, nil
}
