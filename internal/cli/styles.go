// Package cli implements the terminal chat panel.
package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#EF7B4D")
	colorAgent   = lipgloss.Color("#18BE94")
	colorMuted   = lipgloss.Color("#6D7F8B")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E96D76")
)

var styles = struct {
	Title   lipgloss.Style
	You     lipgloss.Style
	Agent   lipgloss.Style
	Muted   lipgloss.Style
	Notice  lipgloss.Style
	Error   lipgloss.Style
	Action  lipgloss.Style
	Payload lipgloss.Style
}{
	Title:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	You:    lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Agent:  lipgloss.NewStyle().Bold(true).Foreground(colorAgent),
	Muted:  lipgloss.NewStyle().Foreground(colorMuted),
	Notice: lipgloss.NewStyle().Foreground(colorWarning),
	Error:  lipgloss.NewStyle().Foreground(colorError),
	Action: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1),
	Payload: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(colorMuted).
		PaddingLeft(1),
}
