// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNew_StripsTimeAndLevel(t *testing.T) {
	t.Setenv(DebugEnv, "")
	var buf bytes.Buffer
	logger := New("info", &buf)

	logger.Info("database key changed", "factors", 2)
	logger.Debug("hidden")

	out := buf.String()
	if strings.Contains(out, "time=") || strings.Contains(out, "level=") {
		t.Errorf("expected time and level to be stripped, got %q", out)
	}
	if !strings.Contains(out, `msg="database key changed" factors=2`) {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level: %q", out)
	}
}

func TestNew_DebugEnv(t *testing.T) {
	t.Setenv(DebugEnv, "1")
	var buf bytes.Buffer
	New("error", &buf).Debug("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output with %s set, got %q", DebugEnv, buf.String())
	}
}
