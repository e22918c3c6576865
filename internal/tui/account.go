package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ovrk/shiftwatch/internal/engine"
	"github.com/ovrk/shiftwatch/internal/store"
)

type accountModel struct {
	eng    *engine.Engine
	store  *store.Store
	width  int
	height int

	signedIn   bool
	email      string
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	formEmail    *string
	formPassword *string
	formServer   *string
}

func newAccountModel(eng *engine.Engine, s *store.Store) accountModel {
	fe, fp, fs := "", "", ""
	m := accountModel{
		eng:          eng,
		store:        s,
		signedIn:     eng.Snapshot().SignedIn,
		formEmail:    &fe,
		formPassword: &fp,
		formServer:   &fs,
	}
	if email, _, err := s.Credentials(); err == nil {
		m.email = email
	}
	return m
}

func (m *accountModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m accountModel) update(msg tea.Msg) (accountModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case authChangedMsg:
		m.signedIn = msg.signedIn
		if email, _, err := m.store.Credentials(); err == nil {
			m.email = email
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter):
			return m.showForm()
		case key.Matches(msg, keys.SignOut):
			if m.signedIn {
				m.eng.SignOut()
				return m, func() tea.Msg {
					return statusMsg{text: "Signed out"}
				}
			}
		}
	}
	return m, nil
}

func (m accountModel) showForm() (accountModel, tea.Cmd) {
	email, _, _ := m.store.Credentials()
	server, _ := m.store.ServerURL()
	*m.formEmail = email
	*m.formPassword = ""
	*m.formServer = server

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(m.formEmail),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(m.formPassword),
			huh.NewInput().Title("Server URL").
				Description("Leave empty to keep the current server").
				Value(m.formServer),
		).Title("Sign In"),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m accountModel) updateForm(msg tea.Msg) (accountModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		if strings.TrimSpace(*m.formServer) != "" {
			m.store.SetServerURL(strings.TrimSpace(*m.formServer))
		}
		m.eng.UpdateCredentials(*m.formEmail, *m.formPassword)
		m.email = strings.TrimSpace(*m.formEmail)
		return m, func() tea.Msg {
			return statusMsg{text: "Credentials updated"}
		}
	}

	return m, cmd
}

func (m accountModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("Account")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()),
		)
	}

	title := titleStyle.Render("Account")

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	if m.signedIn {
		rows = append(rows, fmt.Sprintf("  %s %s",
			lipgloss.NewStyle().Width(12).Render("Status"),
			successStyle.Render("signed in")))
	} else {
		rows = append(rows, fmt.Sprintf("  %s %s",
			lipgloss.NewStyle().Width(12).Render("Status"),
			mutedStyle.Render("signed out")))
	}
	if m.email != "" {
		rows = append(rows, fmt.Sprintf("  %s %s",
			lipgloss.NewStyle().Width(12).Render("Email"),
			highlightStyle.Render(m.email)))
	}
	if server, err := m.store.ServerURL(); err == nil && server != "" {
		rows = append(rows, fmt.Sprintf("  %s %s",
			lipgloss.NewStyle().Width(12).Render("Server"),
			highlightStyle.Render(server)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: edit credentials  o: sign out"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
