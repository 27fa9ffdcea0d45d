// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kiwi-modules/kiwi/internal/render"
)

func newListCommand(app *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed and available modules",
		Long: `List every module known locally or to the registry.

Each module is marked installed-known (installed and in the registry),
installed-unknown (installed, but the registry does not list it) or
available (in the registry, not installed). When the registry cannot be
reached, installed modules are listed as installed-unknown and a warning
is printed.`,
		Args: positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			svc, err := app.services(cmd.Context())
			if err != nil {
				return app.fail("load configuration", err)
			}

			res, err := app.syncEngine(svc, "").List(cmd.Context())
			if err != nil {
				return app.fail("list modules", err)
			}
			for _, w := range res.Warnings {
				_, _ = fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+w)
			}
			return render.Write(app.stdout, f, res, func(w io.Writer) error { return writeListText(w, res) })
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(render.Text), formatFlagUsage())
	return cmd
}
