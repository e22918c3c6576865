package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ovrk/shiftwatch/internal/engine"
	"github.com/ovrk/shiftwatch/internal/status"
)

// projectsModel shows the project list the server reports and lets the user
// choose which project new shifts get logged against. The list itself is
// read-only; projects are managed on the service side.
type projectsModel struct {
	eng    *engine.Engine
	width  int
	height int

	projects []status.Project
	selected *int64
	cursor   int
}

func newProjectsModel(eng *engine.Engine) projectsModel {
	snap := eng.Snapshot()
	return projectsModel{
		eng:      eng,
		projects: snap.Projects,
		selected: snap.SelectedProject,
	}
}

func (p *projectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

func (p projectsModel) update(msg tea.Msg) (projectsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case projectsChangedMsg:
		p.projects = msg.projects
		if p.cursor >= len(p.projects) {
			p.cursor = max(0, len(p.projects)-1)
		}
		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, keys.Down):
			if p.cursor < len(p.projects)-1 {
				p.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if p.cursor < len(p.projects) {
				chosen := p.projects[p.cursor]
				p.selected = &chosen.ID
				p.eng.SelectProject(chosen.ID)
				return p, func() tea.Msg {
					return statusMsg{text: "Tracking against " + chosen.Name}
				}
			}
		case key.Matches(msg, keys.Clear):
			p.selected = nil
			p.eng.ClearProjectSelection()
			return p, func() tea.Msg {
				return statusMsg{text: "Project selection cleared"}
			}
		}
	}
	return p, nil
}

func (p projectsModel) view() string {
	w := p.width - 4

	title := titleStyle.Render("Projects")

	if len(p.projects) == 0 {
		content := fmt.Sprintf("%s\n\n%s", title,
			mutedStyle.Render("No projects reported by the server yet"))
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, proj := range p.projects {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		marker := " "
		if p.selected != nil && *p.selected == proj.ID {
			marker = successStyle.Render("●")
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s", cursor, marker, proj.Name))+
			mutedStyle.Render(fmt.Sprintf("  #%d", proj.ID)))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: track against project  c: clear selection"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
