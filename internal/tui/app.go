// Package tui implements the interactive DevBoot dashboard: a project list
// with live status, the selected project's log and an input line wired to
// its shell.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// App wraps the Bubbletea program
type App struct {
	model Model
}

// New creates a dashboard over ctrl.
func New(ctrl Controller) *App {
	return &App{model: NewModel(ctrl)}
}

// Run shows the dashboard until the user quits or ctx is done. Quitting
// stops every project first.
func (a *App) Run(ctx context.Context) error {
	program := tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := program.Run()
	if a.model.sub != nil {
		a.model.sub.Close()
	}
	return err
}
