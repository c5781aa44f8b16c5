// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package logging builds the slog logger used by dbkey commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// DebugEnv enables debug logging regardless of configuration.
const DebugEnv = "DBKEY_DEBUG"

// ParseLevel maps a configured level name to a slog level. Unknown names are Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a text logger writing to w at the given level.
// Set DBKEY_DEBUG=1 to force debug logging.
func New(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	if os.Getenv(DebugEnv) != "" {
		lvl = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		// Drop time and level for cleaner CLI output
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
