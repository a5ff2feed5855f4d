// Package watchtui implements reflexd watch's bubbletea/lipgloss TUI:
// a single-pane view of a query's latest EvaluateResult that re-renders
// as the supervisor delivers new results and flashes a status line when
// the query file is hot-recompiled.
package watchtui

import "github.com/charmbracelet/lipgloss"

// Styles mirrors the light/semantic palette split the teacher's
// cmd/nerd/ui package uses, trimmed to what a single-pane status view
// needs.
type Styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Footer  lipgloss.Style
}

// DefaultStyles returns the watch TUI's fixed color scheme.
func DefaultStyles() Styles {
	const (
		accent = lipgloss.Color("#8BC34A")
		fail   = lipgloss.Color("#e53935")
		muted  = lipgloss.Color("#7a8699")
		fg     = lipgloss.Color("#f2f2f2")
	)
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Label:  lipgloss.NewStyle().Foreground(muted),
		Value: lipgloss.NewStyle().
			Foreground(fg).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		Success: lipgloss.NewStyle().Foreground(accent).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(fail).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Footer:  lipgloss.NewStyle().Foreground(muted).MarginTop(1),
	}
}
