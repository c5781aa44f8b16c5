// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

// LineReader reads one line of input after showing prompt.
type LineReader func(prompt string) (string, error)

// LinePrompter asks for confirmations with y/N questions. It is used when
// stdin is not a terminal, or when --yes answers every question up front.
type LinePrompter struct {
	out       io.Writer
	readLine  LineReader
	assumeYes bool
	close     func() error
}

// NewLinePrompter creates a prompter around readLine.
func NewLinePrompter(out io.Writer, readLine LineReader, assumeYes bool) *LinePrompter {
	return &LinePrompter{out: out, readLine: readLine, assumeYes: assumeYes}
}

// NewReadlinePrompter creates a prompter reading from in with readline.
func NewReadlinePrompter(in io.ReadCloser, out io.Writer, assumeYes bool) (*LinePrompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Stdin:           in,
		Stdout:          out,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}

	p := NewLinePrompter(out, func(prompt string) (string, error) {
		rl.SetPrompt(prompt)
		return rl.Readline()
	}, assumeYes)
	p.close = rl.Close
	return p, nil
}

// Close releases the underlying reader.
func (p *LinePrompter) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

func (p *LinePrompter) ConfirmNoPassword() bool {
	return p.confirm(NoPasswordTitle, NoPasswordMessage, NoPasswordAccept)
}

func (p *LinePrompter) ConfirmWeakPassword(q passwordhealth.Quality) bool {
	return p.confirm(WeakPasswordTitle, WeakPasswordMessage(q), WeakPasswordAccept)
}

func (p *LinePrompter) ShowError(title, message string) {
	_, _ = fmt.Fprintf(p.out, "%s\n%s\n", errorStyle.Render(title), message)
}

func (p *LinePrompter) confirm(title, message, accept string) bool {
	_, _ = fmt.Fprintf(p.out, "%s\n%s\n", warningStyle.Render(title), message)

	if p.assumeYes {
		_, _ = fmt.Fprintf(p.out, "%s? [y/N] y (assumed)\n", accept)
		return true
	}
	if p.readLine == nil {
		return false
	}

	line, err := p.readLine(fmt.Sprintf("%s? [y/N] ", accept))
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, readline.ErrInterrupt) {
			_, _ = fmt.Fprintf(p.out, "Error reading input: %v\n", err)
		}
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
