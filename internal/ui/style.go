package ui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	TableGray = lipgloss.Color("240")
	Highlight = lipgloss.Color("70")

	Title     = lipgloss.NewStyle().Inline(true).Bold(true).Foreground(lipgloss.Color("252")).Render
	Help      = lipgloss.NewStyle().Inline(true).Foreground(lipgloss.Color("241")).Render
	Failure   = lipgloss.NewStyle().Inline(true).Foreground(lipgloss.Color("203")).Render
	TableBase = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(TableGray).Render
)

// Offset renders a clock offset, green when it is under threshold.
func Offset(offset, threshold time.Duration) string {
	text := offset.String()
	if offset > 0 {
		text = "+" + text
	}
	if offset > -threshold && offset < threshold {
		return lipgloss.NewStyle().Inline(true).Foreground(Highlight).Render(text)
	}
	return Failure(text)
}
