// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package passwordhealth estimates password strength from zxcvbn entropy and
// maps it onto five ordinal quality levels.
package passwordhealth

import (
	"math"

	"github.com/nbutton23/zxcvbn-go"
)

// Quality is an ordinal strength level. Values are comparable with < and >.
type Quality int

const (
	Bad Quality = iota
	Poor
	Weak
	Good
	Excellent
)

// MinQuality and MaxQuality bound configurable thresholds.
const (
	MinQuality = Bad
	MaxQuality = Excellent
)

func (q Quality) String() string {
	switch q {
	case Bad:
		return "Bad"
	case Poor:
		return "Poor"
	case Weak:
		return "Weak"
	case Good:
		return "Good"
	case Excellent:
		return "Excellent"
	default:
		return "Unknown"
	}
}

// Clamp bounds an integer into the valid quality range.
func Clamp(n int) Quality {
	if n < int(MinQuality) {
		return MinQuality
	}
	if n > int(MaxQuality) {
		return MaxQuality
	}
	return Quality(n)
}

// Entropy score thresholds, in bits.
const (
	poorBelow = 40
	weakBelow = 75
	goodBelow = 100
)

// Health is the strength estimate of one password.
type Health struct {
	// Score is the estimated entropy in whole bits.
	Score int

	// Entropy is the raw zxcvbn estimate.
	Entropy float64
}

// Evaluate estimates the strength of password.
func Evaluate(password string) Health {
	if password == "" {
		return Health{}
	}
	result := zxcvbn.PasswordStrength(password, nil)
	return Health{
		Score:   int(math.Floor(result.Entropy)),
		Entropy: result.Entropy,
	}
}

// Quality maps the entropy score onto a quality level.
func (h Health) Quality() Quality {
	return QualityFromScore(h.Score)
}

// QualityFromScore maps an entropy score onto a quality level.
func QualityFromScore(score int) Quality {
	switch {
	case score <= 0:
		return Bad
	case score < poorBelow:
		return Poor
	case score < weakBelow:
		return Weak
	case score < goodBelow:
		return Good
	default:
		return Excellent
	}
}
