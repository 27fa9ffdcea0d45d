// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminals.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for headers and section titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	// SubtitleStyle is for secondary text.
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)

	// ModuleStyle highlights module names.
	ModuleStyle = lipgloss.NewStyle().Foreground(ColorHighlight)

	// labelStyle pads result section labels into a column.
	labelStyle = lipgloss.NewStyle().Bold(true).Width(13)
)
