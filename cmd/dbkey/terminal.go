// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminal reads secrets and answers. Secrets are read without echo when in
// is a terminal, otherwise one line at a time.
type terminal struct {
	in    io.Reader
	out   io.Writer
	fd    int
	lines *bufio.Reader
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	t := &terminal{in: in, out: out, fd: -1, lines: bufio.NewReader(in)}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
	}
	return t
}

// IsTerminal reports whether input comes from an interactive terminal.
func (t *terminal) IsTerminal() bool {
	return t.fd >= 0
}

// ReadSecret prompts for a secret. The caller zeroes the result.
func (t *terminal) ReadSecret(prompt string) ([]byte, error) {
	if t.IsTerminal() {
		_, _ = fmt.Fprint(t.out, prompt)
		secret, err := term.ReadPassword(t.fd)
		_, _ = fmt.Fprintln(t.out)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		return secret, nil
	}

	line, err := t.ReadLine(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return []byte(line), nil
}

// ReadLine prompts and reads one line without its line ending. A final line
// without a newline is returned as is; io.EOF is returned only when nothing
// was read.
func (t *terminal) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		_, _ = fmt.Fprint(t.out, prompt)
	}
	line, err := t.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
