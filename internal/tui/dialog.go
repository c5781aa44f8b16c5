// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aplane-algo/dbkey/internal/passwordhealth"
)

const (
	focusCancel = 0
	focusAccept = 1
)

// ConfirmModel is a two-button confirmation. Cancel has focus initially.
type ConfirmModel struct {
	title   string
	message string
	accept  string

	focus    int
	done     bool
	accepted bool
}

// NewConfirm creates a confirmation whose accept button reads accept.
func NewConfirm(title, message, accept string) ConfirmModel {
	return ConfirmModel{title: title, message: message, accept: accept}
}

// Accepted reports whether the user chose the accept button.
func (m ConfirmModel) Accepted() bool {
	return m.done && m.accepted
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc", "n", "ctrl+c", "q":
		m.done, m.accepted = true, false
		return m, tea.Quit

	case "tab", "shift+tab", "left", "right", "h", "l":
		m.focus = (m.focus + 1) % 2
		return m, nil

	case "enter", " ":
		m.done, m.accepted = true, m.focus == focusAccept
		return m, tea.Quit

	case "y":
		m.done, m.accepted = true, true
		return m, tea.Quit
	}

	return m, nil
}

func (m ConfirmModel) View() string {
	if m.done {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(warningStyle.Render(strings.ToUpper(m.title)))
	sb.WriteString("\n\n")
	sb.WriteString(m.message)
	sb.WriteString("\n\n")

	var cancelBtn, acceptBtn string
	if m.focus == focusCancel {
		cancelBtn = buttonActiveStyle.Render("> CANCEL")
		acceptBtn = buttonInactiveStyle.Render("  " + strings.ToUpper(m.accept))
	} else {
		cancelBtn = buttonInactiveStyle.Render("  CANCEL")
		acceptBtn = buttonDangerStyle.Render("> " + strings.ToUpper(m.accept))
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, cancelBtn, "  ", acceptBtn))
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render("Tab/Arrows: Switch | Enter: Confirm | Esc: Cancel"))

	return popupStyle.Render(sb.String())
}

// ErrorModel shows an error until any key is pressed.
type ErrorModel struct {
	title   string
	message string
	done    bool
}

// NewError creates an error popup.
func NewError(title, message string) ErrorModel {
	return ErrorModel{title: title, message: message}
}

func (m ErrorModel) Init() tea.Cmd {
	return nil
}

func (m ErrorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ErrorModel) View() string {
	if m.done {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(errorStyle.Render(strings.ToUpper(m.title)))
	sb.WriteString("\n\n")
	sb.WriteString(m.message)
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render("Press any key to continue"))
	return popupStyle.BorderForeground(lipgloss.Color("196")).Render(sb.String())
}

// Dialog asks for confirmations with bubbletea programs on a terminal.
type Dialog struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewDialog creates a dialog reading keys from in and drawing on out.
func NewDialog(in io.Reader, out io.Writer, logger *slog.Logger) *Dialog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialog{in: in, out: out, logger: logger}
}

func (d *Dialog) ConfirmNoPassword() bool {
	return d.confirm(NewConfirm(NoPasswordTitle, NoPasswordMessage, NoPasswordAccept))
}

func (d *Dialog) ConfirmWeakPassword(q passwordhealth.Quality) bool {
	return d.confirm(NewConfirm(WeakPasswordTitle, WeakPasswordMessage(q), WeakPasswordAccept))
}

func (d *Dialog) ShowError(title, message string) {
	if _, err := d.program(NewError(title, message)).Run(); err != nil {
		d.logger.Warn("failed to show error dialog", "error", err)
	}
}

// confirm runs m to completion. A dialog that cannot run counts as cancel.
func (d *Dialog) confirm(m ConfirmModel) bool {
	final, err := d.program(m).Run()
	if err != nil {
		d.logger.Warn("failed to show confirmation dialog", "error", err)
		return false
	}
	result, ok := final.(ConfirmModel)
	return ok && result.Accepted()
}

func (d *Dialog) program(m tea.Model) *tea.Program {
	return tea.NewProgram(m, tea.WithInput(d.in), tea.WithOutput(d.out))
}
