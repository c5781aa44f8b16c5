// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package security hardens the process that handles passwords and master keys.
package security

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
)

// LockMemory locks all current and future pages so keys never reach swap.
// Future allocations fail once RLIMIT_MEMLOCK is exhausted, so this is opt-in.
func LockMemory() error {
	if err := syscall.Mlockall(syscall.MCL_CURRENT | syscall.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall failed: %w\n\nTo fix this, run:\n  sudo setcap cap_ipc_lock+ep %s", err, os.Args[0])
	}
	return nil
}

// DisableCoreDumps prevents core dumps that could contain key material.
func DisableCoreDumps() error {
	rlimit := syscall.Rlimit{Cur: 0, Max: 0}
	if err := syscall.Setrlimit(syscall.RLIMIT_CORE, &rlimit); err != nil {
		return fmt.Errorf("failed to disable core dumps: %w", err)
	}
	return nil
}

// Status records which protections are active.
type Status struct {
	CoreDumpsDisabled bool
	MemoryLocked      bool
}

// Harden disables core dumps and, when lockMemory is set, locks memory.
// Failures are logged; the process keeps running without the protection.
func Harden(lockMemory bool, logger *slog.Logger) Status {
	var s Status
	if err := DisableCoreDumps(); err != nil {
		logger.Warn("core dumps remain enabled", "error", err)
	} else {
		s.CoreDumpsDisabled = true
	}

	if lockMemory {
		if err := LockMemory(); err != nil {
			logger.Warn("memory not locked", "error", err)
		} else {
			s.MemoryLocked = true
		}
	}

	logger.Debug("process hardening", "core_dumps_disabled", s.CoreDumpsDisabled, "memory_locked", s.MemoryLocked)
	return s
}
