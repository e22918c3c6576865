package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const logViewCap = 500

// logModel renders the engine's diagnostic log stream.
type logModel struct {
	width  int
	height int

	lines  []string
	scroll int // lines back from the tail (0 = follow)
}

func newLogModel() logModel {
	return logModel{}
}

func (l *logModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

func (l logModel) update(msg tea.Msg) (logModel, tea.Cmd) {
	switch msg := msg.(type) {
	case logLineMsg:
		l.lines = append(l.lines, msg.line)
		if len(l.lines) > logViewCap {
			l.lines = l.lines[len(l.lines)-logViewCap:]
		}
		return l, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if l.scroll < max(0, len(l.lines)-1) {
				l.scroll++
			}
		case key.Matches(msg, keys.Down):
			if l.scroll > 0 {
				l.scroll--
			}
		case key.Matches(msg, keys.Back):
			l.scroll = 0
		}
	}
	return l, nil
}

func (l logModel) view() string {
	w := l.width - 4

	title := titleStyle.Render("Log")
	if len(l.lines) == 0 {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Nothing logged yet")),
		)
	}

	visible := l.height - 8
	if visible < 3 {
		visible = 3
	}

	end := len(l.lines) - l.scroll
	if end < visible {
		end = min(visible, len(l.lines))
	}
	start := max(0, end-visible)

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for _, line := range l.lines[start:end] {
		rows = append(rows, normalItemStyle.Render("  "+line))
	}
	if l.scroll > 0 {
		rows = append(rows, "")
		rows = append(rows, mutedStyle.Render("  ↓ newer lines below"))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
