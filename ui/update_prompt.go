package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const updatePromptText = "A new version is available. Update now to load it, or later to be reminded."

// RenderUpdatePrompt renders the update prompt wrapped to width. A width of
// zero or less leaves the text unwrapped.
func RenderUpdatePrompt(width int) string {
	text := updatePromptText
	if width > 4 {
		text = wordwrap.String(text, width-4)
	}
	actions := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Foreground(green).Bold(true).Render("[u] Update now"),
		"  ",
		labelStyle.Render("[l] Later"),
	)
	return promptStyle.Render(lipgloss.JoinVertical(lipgloss.Left, text, "", actions))
}
