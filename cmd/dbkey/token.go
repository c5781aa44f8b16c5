// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"

	"github.com/aplane-algo/dbkey/internal/challenge"
)

func runTokenCreate(a *app, path string) error {
	token, err := challenge.CreateSoftSecret(path)
	if err != nil {
		return err
	}
	a.printf("Generated software token %s\n", challenge.DeviceID(token.Serial(), token.Slot()))
	a.printf("Add %s to token_secrets in config.yaml to use it\n", path)
	return nil
}

func runTokenList(ctx context.Context, a *app) error {
	if !a.registry.Available() {
		a.printf("No challenge-response tokens configured\n")
		return nil
	}
	devices, err := a.registry.Devices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		a.printf("%-24s %s\n", challenge.DeviceID(d.Serial(), d.Slot()), d.Name())
	}
	return nil
}
