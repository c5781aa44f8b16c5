// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package passwordcmd runs an external helper that supplies the database
// password, so unlocking can be scripted without a terminal.
//
// The helper is invoked as
//
//	argv[0] <verb> argv[1] argv[2] ...
//
// where verb is "read" or "write". On "read" it prints the password on
// stdout. On "write" it receives a new password on stdin, stores it, and
// prints it back for verification.
package passwordcmd

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aplane-algo/dbkey/internal/crypto"
)

const (
	// DefaultTimeout bounds a single helper run.
	DefaultTimeout = 5 * time.Second

	// MaxOutput is the largest stdout accepted from a helper.
	MaxOutput = 8 * 1024

	VerbRead  = "read"
	VerbWrite = "write"
)

var (
	ErrNotConfigured = errors.New("password_command: not configured")
	ErrEmptyOutput   = errors.New("password_command: helper produced empty output")
	ErrMismatch      = errors.New("password_command: stored value does not match")
)

// Command describes a password helper.
type Command struct {
	Argv    []string          `yaml:"argv" description:"Helper executable (absolute path) and arguments"`
	Env     map[string]string `yaml:"env" description:"Environment for the helper; nothing is inherited"`
	Timeout time.Duration     `yaml:"timeout" description:"Maximum helper run time" default:"5s"`
}

// Configured reports whether a helper is set.
func (c Command) Configured() bool {
	return len(c.Argv) > 0
}

// Validate checks argv[0] is an absolute path to an executable that is not
// group or world writable.
func (c Command) Validate() error {
	if len(c.Argv) == 0 {
		return ErrNotConfigured
	}
	bin := c.Argv[0]
	if !filepath.IsAbs(bin) {
		return fmt.Errorf("password_command: %q must be an absolute path", bin)
	}

	info, err := os.Stat(bin)
	if err != nil {
		return fmt.Errorf("password_command: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("password_command: %s is a directory", bin)
	}
	perm := info.Mode().Perm()
	if perm&0111 == 0 {
		return fmt.Errorf("password_command: %s is not executable (mode %04o)", bin, perm)
	}
	if perm&0022 != 0 {
		return fmt.Errorf("password_command: %s is group or world writable (mode %04o)", bin, perm)
	}
	return nil
}

// Read asks the helper for the password. The caller zeroes the result.
func (c Command) Read(ctx context.Context) ([]byte, error) {
	return c.run(ctx, VerbRead, nil)
}

// Write hands password to the helper and verifies the value it echoes back.
func (c Command) Write(ctx context.Context, password []byte) error {
	echoed, err := c.run(ctx, VerbWrite, password)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(echoed)

	if subtle.ConstantTimeCompare(echoed, password) != 1 {
		return ErrMismatch
	}
	return nil
}

func (c Command) run(ctx context.Context, verb string, stdin []byte) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{verb}, c.Argv[1:]...)

	// exec.CommandContext only kills the direct child; the whole process
	// group is killed below instead.
	cmd := exec.Command(c.Argv[0], args...) //nolint:gosec // validated above
	cmd.Env = environ(c.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stderr = io.Discard
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout bytes.Buffer
	defer func() {
		crypto.ZeroBytes(stdout.Bytes())
		stdout.Reset()
	}()
	lw := &limitedWriter{w: &stdout, remaining: MaxOutput}
	cmd.Stdout = lw

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("password_command: failed to start: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("password_command: %s failed: %w", verb, err)
		}
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("password_command: timed out after %s", timeout)
		}
		return nil, fmt.Errorf("password_command: %w", ctx.Err())
	}

	if lw.truncated {
		return nil, fmt.Errorf("password_command: output exceeded %d bytes", MaxOutput)
	}
	return decode(trimNewline(stdout.Bytes()))
}

// trimNewline removes one trailing "\n" or "\r\n". Other whitespace is part
// of the password.
func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
		if n := len(b); n > 0 && b[n-1] == '\r' {
			b = b[:n-1]
		}
	}
	return b
}

// decode returns a fresh copy of out, decoding "base64:" and "hex:" prefixes.
func decode(out []byte) ([]byte, error) {
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	if bytes.IndexByte(out, 0) >= 0 {
		return nil, errors.New("password_command: output contains NUL bytes")
	}

	switch {
	case bytes.HasPrefix(out, []byte("base64:")):
		enc := out[len("base64:"):]
		dst := make([]byte, base64.StdEncoding.DecodedLen(len(enc)))
		n, err := base64.StdEncoding.Decode(dst, enc)
		if err != nil {
			crypto.ZeroBytes(dst)
			return nil, fmt.Errorf("password_command: invalid base64 output: %w", err)
		}
		return dst[:n], nil

	case bytes.HasPrefix(out, []byte("hex:")):
		enc := out[len("hex:"):]
		dst := make([]byte, hex.DecodedLen(len(enc)))
		n, err := hex.Decode(dst, enc)
		if err != nil {
			crypto.ZeroBytes(dst)
			return nil, fmt.Errorf("password_command: invalid hex output: %w", err)
		}
		return dst[:n], nil
	}

	return bytes.Clone(out), nil
}

func environ(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}

// limitedWriter keeps at most remaining bytes and records truncation. It
// always reports full writes so the helper never sees a short write.
type limitedWriter struct {
	w         io.Writer
	remaining int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > lw.remaining {
		p = p[:lw.remaining]
		lw.truncated = true
	}
	if len(p) > 0 {
		written, err := lw.w.Write(p)
		lw.remaining -= written
		if err != nil {
			return written, err
		}
	}
	return n, nil
}
