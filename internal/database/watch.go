// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package database

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch marks the database stale when another process replaces its header.
// It returns once the watcher is installed; watching stops when ctx is done.
func (d *Database) Watch(ctx context.Context) error {
	if d.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: atomic writes replace the file, dropping a file watch.
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch database directory: %w", err)
	}

	target := filepath.Clean(d.path)

	go func() {
		defer func() { _ = watcher.Close() }()

		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(watchDebounce, d.checkExternalChange)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("database watcher error", "error", err)
			}
		}
	}()

	return nil
}

// checkExternalChange compares the header on disk with the one last written.
func (d *Database) checkExternalChange() {
	h, err := ReadHeader(d.path)

	d.mu.Lock()
	current := d.header.Check
	d.mu.Unlock()

	if current == "" {
		// Nothing written yet; any file that appears belongs to someone else.
		if err == nil {
			d.markStale()
		}
		return
	}
	if err != nil || h.Check != current {
		d.markStale()
	}
}

func (d *Database) markStale() {
	if d.stale.CompareAndSwap(false, true) {
		d.logger.Warn("database file changed on disk, key changes are blocked until it is reopened",
			"path", d.path)
	}
}
