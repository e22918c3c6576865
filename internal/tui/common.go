package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ovrk/shiftwatch/internal/engine"
	"github.com/ovrk/shiftwatch/internal/status"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewProjects
	viewReports
	viewLog
	viewAccount
)

var viewNames = []string{"Dashboard", "Projects", "Reports", "Log", "Account"}

// --- Messages ---

// Engine events forwarded into the program.

type stateChangedMsg struct {
	state engine.TrackerState
}

type projectsChangedMsg struct {
	projects []status.Project
}

type secondsChangedMsg struct {
	seconds int64
}

type logLineMsg struct {
	line string
}

type authChangedMsg struct {
	signedIn bool
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// subscribeEngine wires all five engine event streams into one channel the
// program drains. Sends never block the engine loop; under pressure events
// are dropped, which is fine because the next poll re-delivers current state.
func subscribeEngine(eng *engine.Engine) chan tea.Msg {
	ch := make(chan tea.Msg, 128)
	push := func(msg tea.Msg) {
		select {
		case ch <- msg:
		default:
		}
	}
	eng.OnStateChange(func(s engine.TrackerState) { push(stateChangedMsg{state: s}) })
	eng.OnProjectsChange(func(ps []status.Project) { push(projectsChangedMsg{projects: ps}) })
	eng.OnTotalSecondsChange(func(secs int64) { push(secondsChangedMsg{seconds: secs}) })
	eng.OnLogLine(func(line string) { push(logLineMsg{line: line}) })
	eng.OnAuthChange(func(signedIn bool) { push(authChangedMsg{signedIn: signedIn}) })
	return ch
}

func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
