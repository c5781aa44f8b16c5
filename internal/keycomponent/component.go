// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keycomponent models the editable state of each authentication factor
// during a key-change session.
//
// Every component is in one of three pages:
//
//	AddNew         the factor is not part of the key and is not being added
//	Edit           the user is supplying new material for the factor
//	LeaveOrRemove  the factor is part of the current key and is kept as is
//
// A component validates its own input and contributes a freshly derived factor to
// a keys.Builder. Carrying an unchanged factor over is the workflow's job, since
// only the workflow sees the current key.
package keycomponent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/keys"
	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

// Page is the visible edit state of a component.
type Page int

const (
	PageAddNew Page = iota
	PageEdit
	PageLeaveOrRemove
)

func (p Page) String() string {
	switch p {
	case PageAddNew:
		return "add-new"
	case PageEdit:
		return "edit"
	case PageLeaveOrRemove:
		return "leave-or-remove"
	default:
		return "unknown"
	}
}

// Component is one authentication factor under edit.
type Component interface {
	// Name is a human readable label ("Password", "Key File").
	Name() string

	// Kind is the factor kind.
	Kind() keys.Kind

	// TypeID matches the factor's keys.Key UUID in a composite key.
	TypeID() uuid.UUID

	VisiblePage() Page

	// IsEmpty reports whether no usable input has been entered.
	// Only meaningful on PageEdit.
	IsEmpty() bool

	// Validate checks the entered material. Failures are *ValidationError.
	Validate(ctx context.Context) error

	// AddToCompositeKey derives a fresh factor and adds it to b.
	AddToCompositeKey(ctx context.Context, b *keys.Builder) error

	// SetComponentAdded records whether the factor exists in the current key.
	// true moves to PageLeaveOrRemove, false to PageAddNew. Does not notify.
	SetComponentAdded(added bool)

	ComponentAdded() bool

	// Edit switches to PageEdit. Notifies change listeners.
	Edit()

	// CancelEdit leaves PageEdit without applying input.
	CancelEdit()

	// Remove drops the factor from the key being built. Notifies change listeners.
	Remove()

	// OnChange registers a listener for user-initiated changes.
	OnChange(fn func())
}

// PasswordComponent is the master password factor.
type PasswordComponent interface {
	Component

	// Quality estimates the strength of the entered password.
	Quality() passwordhealth.Quality
}

// ValidationError reports unusable factor material.
type ValidationError struct {
	Component string
	Reason    string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// base implements page handling and change notification shared by all components.
type base struct {
	name   string
	kind   keys.Kind
	typeID uuid.UUID

	mu        sync.Mutex
	page      Page
	added     bool
	listeners []func()
}

func newBase(name string, kind keys.Kind) base {
	return base{name: name, kind: kind, typeID: keys.TypeID(kind)}
}

func (b *base) Name() string      { return b.name }
func (b *base) Kind() keys.Kind   { return b.kind }
func (b *base) TypeID() uuid.UUID { return b.typeID }

func (b *base) VisiblePage() Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

func (b *base) ComponentAdded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.added
}

func (b *base) SetComponentAdded(added bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added = added
	if added {
		b.page = PageLeaveOrRemove
	} else {
		b.page = PageAddNew
	}
}

func (b *base) Edit() {
	b.mu.Lock()
	b.page = PageEdit
	b.mu.Unlock()
	b.notify()
}

func (b *base) CancelEdit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.added {
		b.page = PageLeaveOrRemove
	} else {
		b.page = PageAddNew
	}
}

func (b *base) Remove() {
	b.SetComponentAdded(false)
	b.notify()
}

func (b *base) OnChange(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// notify runs listeners outside the lock so they may query the component.
func (b *base) notify() {
	b.mu.Lock()
	listeners := make([]func(), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (b *base) invalid(reason string, err error) *ValidationError {
	return &ValidationError{Component: b.name, Reason: reason, Err: err}
}
