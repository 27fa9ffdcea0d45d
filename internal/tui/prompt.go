// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrNoInput is returned when input ends before a valid answer is read.
var ErrNoInput = errors.New("no answer: input closed")

// Answers offered by Confirm.
const (
	Yes = "y"
	No  = "n"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	choiceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

type (
	// Prompter reads answers from In and writes prompts to Out.
	Prompter struct {
		raw io.Reader
		in  *bufio.Reader
		out io.Writer
		// AssumeYes answers every question with its first choice without reading input.
		AssumeYes   bool
		styled      bool
		interactive bool
	}

	// Option configures a Prompter.
	Option func(*Prompter)
)

// WithAssumeYes makes the prompter answer without asking.
func WithAssumeYes(yes bool) Option {
	return func(p *Prompter) { p.AssumeYes = yes }
}

// WithStyle forces styling on or off, overriding terminal detection.
func WithStyle(styled bool) Option {
	return func(p *Prompter) { p.styled = styled }
}

// WithInteractive forces the terminal selector on or off, overriding
// terminal detection.
func WithInteractive(interactive bool) Option {
	return func(p *Prompter) { p.interactive = interactive }
}

// New returns a prompter over in and out. Styling is enabled when out is a
// terminal; when in is one too, Ask shows a selector instead of reading lines.
func New(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	p := &Prompter{
		raw:         in,
		in:          bufio.NewReader(in),
		out:         out,
		styled:      isTerminal(out),
		interactive: isTerminal(out) && isTerminal(in),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask writes "prompt [a/b]: " and reads lines until one matches a choice,
// ignoring case and surrounding space. It returns the choice as given.
// Invalid answers re-prompt; end of input returns ErrNoInput.
func (p *Prompter) Ask(prompt string, choices ...string) (string, error) {
	if len(choices) == 0 {
		return "", errors.New("ask: no choices given")
	}
	line := p.render(prompt, choices)

	if p.AssumeYes {
		_, _ = fmt.Fprintln(p.out, line+choices[0])
		return choices[0], nil
	}
	if p.interactive {
		return p.choose(prompt, choices)
	}

	for {
		_, _ = fmt.Fprint(p.out, line)

		answer, err := p.in.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer != "" {
			for _, c := range choices {
				if strings.EqualFold(answer, c) {
					return c, nil
				}
			}
		}
		if err != nil {
			_, _ = fmt.Fprintln(p.out)
			if errors.Is(err, io.EOF) {
				return "", ErrNoInput
			}
			return "", fmt.Errorf("reading answer: %w", err)
		}

		hint := fmt.Sprintf("Please answer one of: %s", strings.Join(choices, ", "))
		if p.styled {
			hint = invalidStyle.Render(hint)
		}
		_, _ = fmt.Fprintln(p.out, hint)
	}
}

// Confirm asks a y/n question and reports whether the answer was yes.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.Ask(prompt, Yes, No)
	if err != nil {
		return false, err
	}
	return answer == Yes, nil
}

func (p *Prompter) render(prompt string, choices []string) string {
	opts := "[" + strings.Join(choices, "/") + "]"
	if !p.styled {
		return prompt + " " + opts + ": "
	}
	return promptStyle.Render(prompt) + " " + choiceStyle.Render(opts) + ": "
}

// choose runs the selector. Canceling counts as no answer.
func (p *Prompter) choose(prompt string, choices []string) (string, error) {
	final, err := tea.NewProgram(newChoiceModel(prompt, choices),
		tea.WithInput(p.raw),
		tea.WithOutput(p.out),
	).Run()
	if err != nil {
		return "", fmt.Errorf("running selector: %w", err)
	}
	m, ok := final.(choiceModel)
	if !ok || m.canceled || m.chosen == "" {
		return "", ErrNoInput
	}
	return m.chosen, nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
