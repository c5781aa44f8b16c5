// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aplane-algo/dbkey/internal/database"
)

// RenderStatus formats a database header for the status command.
func RenderStatus(path string, h database.Header, remembered bool) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Database"))
	sb.WriteString("\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	row("Path", path)
	row("Public UUID", h.PublicUUID.String())

	factors := "none"
	if len(h.Factors) > 0 {
		factors = strings.Join(h.Factors, ", ")
	}
	row("Factors", factors)
	row("KDF", fmt.Sprintf("argon2id t=%d m=%dKiB p=%d", h.KDF.Time, h.KDF.Memory, h.KDF.Threads))
	row("Key changed", formatTime(h.KeyChanged))
	row("Modified", formatTime(h.Modified))

	if remembered {
		row("Quick unlock", okStyle.Render("remembered"))
	} else {
		row("Quick unlock", subtitleStyle.Render("not remembered"))
	}

	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return subtitleStyle.Render("never")
	}
	return t.Local().Format(time.RFC3339)
}
