// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/kiwi-modules/kiwi/internal/engine"
	"github.com/kiwi-modules/kiwi/internal/render"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var statusStyles = map[engine.Status]lipgloss.Style{
	engine.StatusInstalledKnown:   SuccessStyle,
	engine.StatusInstalledUnknown: WarningStyle,
	engine.StatusAvailable:        SubtitleStyle,
}

func writeListText(w io.Writer, res *engine.ListResult) error {
	if len(res.Modules) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No modules installed or available."))
		return err
	}

	width := 0
	for _, m := range res.Modules {
		width = max(width, len(m.Name))
	}
	nameStyle := ModuleStyle.Width(width + 2)
	statusWidth := len(engine.StatusInstalledUnknown) + 2

	for _, m := range res.Modules {
		status := statusStyles[m.Status].Width(statusWidth).Render(string(m.Status))
		line := nameStyle.Render(string(m.Name)) + status + m.Description
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func writeResultText(w io.Writer, res *engine.Result) error {
	var b strings.Builder

	section := func(label string, style lipgloss.Style, names []kiwimod.Name) {
		if len(names) == 0 {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(style.Render(strings.Join(kiwimod.Strings(names), ", ")))
		b.WriteString("\n")
	}

	section("Fetched:", SuccessStyle, res.Fetched)
	section("Updated:", SuccessStyle, res.Updated)
	section("Updatable:", WarningStyle, res.Updatable)
	section("Unchanged:", SubtitleStyle, res.Unchanged)
	section("Dependencies:", SubtitleStyle, res.Dependencies)
	if len(res.Failed) > 0 {
		b.WriteString(labelStyle.Render("Failed:"))
		b.WriteString("\n")
		for _, f := range res.Failed {
			fmt.Fprintf(&b, "  %s %s\n", ErrorStyle.Render(string(f.Module)+":"), f.Reason)
		}
	}

	fmt.Fprintf(&b, "%d fetched, %d updated, %d updatable, %d failed, %d unchanged\n",
		len(res.Fetched), len(res.Updated), len(res.Updatable), len(res.Failed), len(res.Unchanged))

	_, err := io.WriteString(w, b.String())
	return err
}

func writeResult(w io.Writer, f render.Format, res *engine.Result) error {
	return render.Write(w, f, res, func(w io.Writer) error { return writeResultText(w, res) })
}

// formatFlagUsage is the help text of --format.
func formatFlagUsage() string {
	names := make([]string, 0, len(render.Formats()))
	for _, f := range render.Formats() {
		names = append(names, string(f))
	}
	return "output format (" + strings.Join(names, ", ") + ")"
}

func parseFormat(s string) (render.Format, error) {
	f, err := render.ParseFormat(s)
	if err != nil {
		return "", usageError(err)
	}
	return f, nil
}
