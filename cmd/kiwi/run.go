// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kiwi-modules/kiwi/internal/runner"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

func newRunCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <module> [args...]",
		Short: "Run an installed module",
		Long: `Run a module in kiwi's embedded POSIX shell.

A module that is not installed, or whose dependencies were removed, is
fetched first. Arguments after the module name are passed to the script
as $1, $2, ... and the script's exit status becomes kiwi's.

Scripts can call the 'kiwi' builtin: kiwi name, kiwi installed,
kiwi describe <module>, kiwi ask <prompt> <choice>...,
kiwi serverside [args...] and kiwi run <module> [args...].`,
		Example: `  kiwi run greet world
  kiwi run lint -- --fix`,
		Args: positional(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.services(cmd.Context())
			if err != nil {
				return app.fail("load configuration", err)
			}

			code, err := app.moduleRunner(svc).Run(cmd.Context(), kiwimod.Name(args[0]), args[1:], runner.IO{
				Stdin:  app.stdin,
				Stdout: app.stdout,
				Stderr: app.stderr,
			})
			if err != nil {
				return app.fail("run module "+args[0], err)
			}
			if code != ExitOK {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	// Flags after the module name belong to the module.
	cmd.Flags().SetInterspersed(false)
	return cmd
}
