package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ovrk/shiftwatch/internal/engine"
	"github.com/ovrk/shiftwatch/internal/status"
)

type dashboardModel struct {
	eng    *engine.Engine
	width  int
	height int

	state        engine.TrackerState
	totalSeconds int64
	projects     []status.Project
	selected     *int64
	signedIn     bool

	// Project picker state
	picking      bool
	pickerCursor int
}

func newDashboardModel(eng *engine.Engine) dashboardModel {
	snap := eng.Snapshot()
	return dashboardModel{
		eng:          eng,
		state:        snap.State,
		totalSeconds: snap.TotalSeconds,
		projects:     snap.Projects,
		selected:     snap.SelectedProject,
		signedIn:     snap.SignedIn,
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case stateChangedMsg:
		d.state = msg.state
		return d, nil

	case secondsChangedMsg:
		d.totalSeconds = msg.seconds
		return d, nil

	case projectsChangedMsg:
		d.projects = msg.projects
		if d.pickerCursor >= len(d.projects) {
			d.pickerCursor = max(0, len(d.projects)-1)
		}
		return d, nil

	case authChangedMsg:
		d.signedIn = msg.signedIn
		return d, nil

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Toggle):
			d.eng.HandleToggleTap()
			return d, nil

		case key.Matches(msg, keys.Refresh):
			d.eng.RefreshStatus(true)
			return d, nil

		case key.Matches(msg, keys.Pick):
			if len(d.projects) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No projects reported yet", isError: true}
				}
			}
			d.picking = true
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Clear):
			d.selected = nil
			d.eng.ClearProjectSelection()
			return d, nil
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.projects)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		if d.pickerCursor >= len(d.projects) {
			d.picking = false
			return d, nil
		}
		p := d.projects[d.pickerCursor]
		d.picking = false
		d.selected = &p.ID
		d.eng.SelectProject(p.ID)
		return d, func() tea.Msg {
			return statusMsg{text: "Tracking against " + p.Name}
		}
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) isStarted() bool {
	return d.state.Kind == engine.StateStarted
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	statePanel := d.renderStatePanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderProjectPicker(contentWidth)
	} else {
		bottomPanel = d.renderProjectPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, statePanel, bottomPanel)
}

func (d dashboardModel) renderStatePanel(w int) string {
	if !d.signedIn {
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render("--:--:--"),
			mutedStyle.Render("Signed out"),
			mutedStyle.Render("Press 5 to open Account and sign in"),
		)
		return panelStyle.Width(w).Render(content)
	}

	timeStr := formatSeconds(d.totalSeconds)
	var timeDisplay, indicator, hint string

	switch d.state.Kind {
	case engine.StateStarted:
		timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
		indicator = successStyle.Render("●  TRACKING")
		hint = mutedStyle.Render("Press space to clock out")
	case engine.StateStopped:
		timeDisplay = timerStyle.Width(w - 6).Render(timeStr)
		indicator = mutedStyle.Render("■  STOPPED")
		hint = mutedStyle.Render("Press space to clock in")
	case engine.StateLoading:
		timeDisplay = timerStyle.Width(w - 6).Render(timeStr)
		indicator = warningStyle.Render("…  WORKING")
		hint = mutedStyle.Render("Talking to the server")
	case engine.StateError:
		timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
		indicator = errorStyle.Render("✗  ERROR")
		hint = errorStyle.Render(d.state.Message)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		timeDisplay,
		indicator,
		hint,
	)
	if d.state.Kind == engine.StateStarted {
		return activePanelStyle.Width(w).Render(content)
	}
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderProjectPanel(w int) string {
	title := titleStyle.Render("Projects")
	if len(d.projects) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No projects reported by the server yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for _, p := range d.projects {
		marker := "  "
		style := normalItemStyle
		if d.selected != nil && *d.selected == p.ID {
			marker = "● "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("  %s%s", marker, p.Name)))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  p: pick project  c: clear selection"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderProjectPicker(w int) string {
	title := titleStyle.Render("Select Project")

	var rows []string
	rows = append(rows, title)
	for i, p := range d.projects {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s", cursor, p.Name)))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
