package ui

import "github.com/charmbracelet/lipgloss"

var (
	red    = lipgloss.AdaptiveColor{Light: "#D32F2F", Dark: "#FF5F5F"}
	green  = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#5FD75F"}
	blue   = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#5FAFFF"}
	orange = lipgloss.AdaptiveColor{Light: "#E65100", Dark: "#FF8700"}
	gray   = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	indicatorStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(gray)
	helpStyle  = lipgloss.NewStyle().Foreground(gray)
)
