// Package styles holds PenchY's lipgloss palette and shared rendering
// helpers for cli/tui, trimmed from the teacher's cli/auth/tui/styles
// theme to the handful of colors the status view actually uses.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#2E86AB")
	Success = lipgloss.Color("#46A758")
	Warning = lipgloss.Color("#F18F01")
	Error   = lipgloss.Color("#C73E1D")
	Muted   = lipgloss.Color("#666666")
	Border  = lipgloss.Color("#3A3A3A")

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)
	HelpStyle  = lipgloss.NewStyle().Foreground(Muted).Italic(true)

	ReceivedStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	PendingStyle  = lipgloss.NewStyle().Foreground(Warning)
	TimedOutStyle = lipgloss.NewStyle().Foreground(Error).Bold(true)
)

// RenderTitle renders text with the status view's title styling.
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}
