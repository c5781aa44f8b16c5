// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/dbkey/internal/database"
	"github.com/aplane-algo/dbkey/internal/passwordhealth"
	"github.com/aplane-algo/dbkey/internal/workflow"
)

var (
	_ workflow.Confirmer = (*Dialog)(nil)
	_ workflow.Confirmer = (*LinePrompter)(nil)
)

func press(t *testing.T, m tea.Model, keys ...tea.KeyMsg) ConfirmModel {
	t.Helper()
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	cm, ok := m.(ConfirmModel)
	require.True(t, ok)
	return cm
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyY     = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}
)

func TestConfirmModel_DefaultsToCancel(t *testing.T) {
	m := press(t, NewConfirm("t", "m", "Continue"), keyEnter)
	assert.False(t, m.Accepted())
	assert.True(t, m.done)
}

func TestConfirmModel_Keys(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
		want bool
	}{
		{"tab then enter accepts", []tea.KeyMsg{keyTab, keyEnter}, true},
		{"tab twice cancels", []tea.KeyMsg{keyTab, keyTab, keyEnter}, false},
		{"y accepts", []tea.KeyMsg{keyY}, true},
		{"esc cancels even when accept focused", []tea.KeyMsg{keyTab, keyEsc}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, press(t, NewConfirm("t", "m", "Continue"), tt.keys...).Accepted())
		})
	}
}

func TestConfirmModel_QuitCommand(t *testing.T) {
	_, cmd := NewConfirm("t", "m", "Continue").Update(keyEnter)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = NewConfirm("t", "m", "Continue").Update(keyTab)
	assert.Nil(t, cmd)
}

func TestConfirmModel_View(t *testing.T) {
	m := NewConfirm(NoPasswordTitle, NoPasswordMessage, NoPasswordAccept)
	view := m.View()
	assert.Contains(t, view, "NO PASSWORD SET")
	assert.Contains(t, view, "> CANCEL")

	m = press(t, m, keyTab)
	assert.Contains(t, m.View(), "> CONTINUE WITHOUT PASSWORD")

	m = press(t, m, keyEnter)
	assert.Empty(t, m.View())
}

func TestErrorModel(t *testing.T) {
	m := NewError("Failed", "Passwords do not match.")
	assert.Contains(t, m.View(), "Passwords do not match.")

	next, cmd := m.Update(keyEsc)
	require.NotNil(t, cmd)
	assert.Empty(t, next.View())
}

func TestLinePrompter(t *testing.T) {
	answers := func(lines ...string) LineReader {
		return func(string) (string, error) {
			if len(lines) == 0 {
				return "", io.EOF
			}
			line := lines[0]
			lines = lines[1:]
			return line, nil
		}
	}

	var out bytes.Buffer
	p := NewLinePrompter(&out, answers("y", "no", " YES "), false)
	assert.True(t, p.ConfirmNoPassword())
	assert.False(t, p.ConfirmWeakPassword(passwordhealth.Poor))
	assert.True(t, p.ConfirmWeakPassword(passwordhealth.Weak))
	assert.False(t, p.ConfirmNoPassword(), "EOF cancels")
	assert.Contains(t, out.String(), NoPasswordTitle)
	assert.Contains(t, out.String(), "(Poor)")

	out.Reset()
	failing := NewLinePrompter(&out, func(string) (string, error) { return "", errors.New("tty gone") }, false)
	assert.False(t, failing.ConfirmNoPassword())
	assert.Contains(t, out.String(), "tty gone")

	out.Reset()
	yes := NewLinePrompter(&out, nil, true)
	assert.True(t, yes.ConfirmNoPassword())
	assert.True(t, yes.ConfirmWeakPassword(passwordhealth.Bad))
	assert.Contains(t, out.String(), "(assumed)")
	assert.NoError(t, yes.Close())

	out.Reset()
	yes.ShowError("No encryption key added", "You must add at least one encryption key")
	assert.Contains(t, out.String(), "You must add at least one encryption key")
}

func TestRenderStatus(t *testing.T) {
	h := database.Header{
		PublicUUID: uuid.New(),
		Factors:    []string{"password", "keyfile"},
		KeyChanged: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out := RenderStatus("/data/vault.dbkey", h, true)
	assert.Contains(t, out, "/data/vault.dbkey")
	assert.Contains(t, out, h.PublicUUID.String())
	assert.Contains(t, out, "password, keyfile")
	assert.Contains(t, out, "remembered")
	assert.Contains(t, out, "never")
}
