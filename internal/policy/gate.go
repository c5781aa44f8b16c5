// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package policy decides whether a new master password is acceptable.
//
// # Two-Layer Password Policy
//
// A password must pass two layers before it becomes part of a new key:
//
//  1. Minimum quality: a hard floor set by the administrator. A password below
//     the floor is rejected with no human override possible.
//
//  2. Human acknowledgment: a missing password, or one below Good but at or
//     above the floor, is shown to the user, who may accept it explicitly.
//     Declining cancels the whole key change.
package policy

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

var (
	// ErrNoPasswordDeclined indicates the user refused to continue without a password
	ErrNoPasswordDeclined = errors.New("continuing without a password was declined")

	// ErrWeakPasswordDeclined indicates the user refused to continue with a weak password
	ErrWeakPasswordDeclined = errors.New("continuing with a weak password was declined")
)

// PolicyViolation reports a password below the configured minimum quality.
type PolicyViolation struct {
	Quality passwordhealth.Quality
	Minimum passwordhealth.Quality
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("password quality %s is below the required minimum %s", e.Quality, e.Minimum)
}

// Message is the text shown to the user.
func (e *PolicyViolation) Message() string {
	return fmt.Sprintf("The provided password does not meet the minimum quality requirement (%s).", e.Minimum)
}

// Verdict is the gate's decision before any user acknowledgment.
type Verdict int

const (
	VerdictAdmit Verdict = iota
	VerdictNoPassword
	VerdictWeak
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictAdmit:
		return "admit"
	case VerdictNoPassword:
		return "no-password"
	case VerdictWeak:
		return "weak"
	case VerdictReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Acknowledger asks the user to accept a policy warning.
// Both calls block until the user answers; false means cancel.
type Acknowledger interface {
	ConfirmNoPassword() bool
	ConfirmWeakPassword(q passwordhealth.Quality) bool
}

// Gate applies the minimum quality floor and the Good advisory threshold.
type Gate struct {
	minimum passwordhealth.Quality
}

// NewGate creates a gate with the given minimum quality, clamped to the valid range.
func NewGate(minimum int) *Gate {
	return &Gate{minimum: passwordhealth.Clamp(minimum)}
}

// Minimum returns the hard floor.
func (g *Gate) Minimum() passwordhealth.Quality {
	return g.minimum
}

// Evaluate classifies a password. present is false when no password is set.
func (g *Gate) Evaluate(present bool, q passwordhealth.Quality) Verdict {
	switch {
	case !present:
		return VerdictNoPassword
	case q < g.minimum:
		return VerdictReject
	case q < passwordhealth.Good:
		return VerdictWeak
	default:
		return VerdictAdmit
	}
}

// Check evaluates the password and asks ack for any overridable warning.
// It returns nil when the password may be used.
func (g *Gate) Check(ack Acknowledger, present bool, q passwordhealth.Quality) error {
	switch g.Evaluate(present, q) {
	case VerdictNoPassword:
		if !ack.ConfirmNoPassword() {
			return ErrNoPasswordDeclined
		}
	case VerdictReject:
		return &PolicyViolation{Quality: q, Minimum: g.minimum}
	case VerdictWeak:
		if !ack.ConfirmWeakPassword(q) {
			return ErrWeakPasswordDeclined
		}
	}
	return nil
}
