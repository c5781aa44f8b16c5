// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package challenge

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe set of providers keyed by family.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Add stores a provider if its family is not registered yet.
// Returns false if the family already existed (provider not replaced).
func (r *Registry) Add(p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Family()]; exists {
		return false
	}
	r.providers[p.Family()] = p
	return true
}

// Available reports whether any provider is registered.
func (r *Registry) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Families returns registered family names, sorted.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	families := make([]string, 0, len(r.providers))
	for f := range r.providers {
		families = append(families, f)
	}
	sort.Strings(families)
	return families
}

// Devices lists devices across all providers, ordered by family.
// A provider that fails to enumerate aborts the listing.
func (r *Registry) Devices(ctx context.Context) ([]Device, error) {
	var all []Device
	for _, family := range r.Families() {
		r.mu.RLock()
		p := r.providers[family]
		r.mu.RUnlock()

		devices, err := p.Devices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate %s devices: %w", family, err)
		}
		all = append(all, devices...)
	}
	return all, nil
}

// Find returns the device with the given serial and slot.
func (r *Registry) Find(ctx context.Context, serial string, slot int) (Device, error) {
	if !r.Available() {
		return nil, ErrNoProviders
	}
	devices, err := r.Devices(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Serial() == serial && d.Slot() == slot {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, DeviceID(serial, slot))
}
