// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
)

// choiceModel is the terminal form of Ask: arrows or tab move between
// choices, enter picks, typing a choice picks it directly.
type choiceModel struct {
	prompt   string
	choices  []string
	cursor   int
	chosen   string
	canceled bool
}

func newChoiceModel(prompt string, choices []string) choiceModel {
	return choiceModel{prompt: prompt, choices: choices}
}

// Init implements tea.Model.
func (m choiceModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m choiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	n := len(m.choices)
	switch key.String() {
	case "ctrl+c", "esc":
		m.canceled = true
		return m, tea.Quit
	case "left", "up", "h", "k", "shift+tab":
		m.cursor = (m.cursor - 1 + n) % n
	case "right", "down", "l", "j", "tab":
		m.cursor = (m.cursor + 1) % n
	case "enter":
		m.chosen = m.choices[m.cursor]
		return m, tea.Quit
	default:
		for i, c := range m.choices {
			if strings.EqualFold(key.String(), c) {
				m.cursor = i
				m.chosen = c
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m choiceModel) View() string {
	if m.chosen != "" || m.canceled {
		return promptStyle.Render(m.prompt) + " " + m.chosen + "\n"
	}

	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt))
	for i, c := range m.choices {
		b.WriteString("  ")
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + c))
		} else {
			b.WriteString(choiceStyle.Render("  " + c))
		}
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("←/→ move • enter select • esc cancel"))
	b.WriteString("\n")
	return b.String()
}
