// SPDX-License-Identifier: MIT
package tui

import (
	"github.com/charmbracelet/lipgloss"

	applog "refmaster/internal/log"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F56")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFBD2E"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7D7D"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25A065")).
			Padding(0, 1)
)

func levelStyle(level applog.LogLevel) lipgloss.Style {
	switch level {
	case applog.LevelError, applog.LevelFatal:
		return errorStyle
	case applog.LevelWarn:
		return warnStyle
	case applog.LevelDebug:
		return dimStyle
	default:
		return infoStyle
	}
}
