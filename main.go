package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ovrk/shiftwatch/internal/api"
	"github.com/ovrk/shiftwatch/internal/engine"
	"github.com/ovrk/shiftwatch/internal/store"
	"github.com/ovrk/shiftwatch/internal/tui"
)

const defaultServerURL = "https://app.quickclock.example.com"

func main() {
	dbPath, err := store.DefaultDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	s, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	client, err := api.New(serverURL(s), s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(client, s)
	eng.Start()
	defer eng.Close()

	app := tui.NewApp(eng, s)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// serverURL resolves the tracking server, env first, then the stored choice.
// A URL saved from the account view takes effect on the next start.
func serverURL(s *store.Store) string {
	if v := os.Getenv("SHIFTWATCH_URL"); v != "" {
		return v
	}
	if v, err := s.ServerURL(); err == nil && v != "" {
		return v
	}
	return defaultServerURL
}
