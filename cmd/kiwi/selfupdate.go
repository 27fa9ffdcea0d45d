// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiwi-modules/kiwi/internal/selfupdate"
)

func newSelfUpdateCommand(app *App) *cobra.Command {
	var check, yes bool

	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update kiwi to the latest stable release",
		Long: `Update kiwi to the latest stable release from GitHub Releases.

The archive's SHA-256 checksum is verified before the running binary is
replaced. Installs managed by Homebrew or go install are not touched;
kiwi prints the command to upgrade them instead. A failed check or
download leaves kiwi unchanged and does not fail the command.

Set GITHUB_TOKEN to raise the GitHub API rate limit.`,
		Args: positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail("load configuration", err)
			}

			ctrl := selfupdate.NewController(app.SelfUpdater(cfg), app.logger)
			ctrl.CheckOnly = check
			if !yes {
				prompter := app.prompter(false)
				ctrl.Confirm = func(prompt string) bool {
					ok, err := prompter.Confirm(prompt)
					return err == nil && ok
				}
			}

			applied, message := ctrl.SelfUpdate(cmd.Context())
			if applied {
				message = SuccessStyle.Render(message)
			}
			_, _ = fmt.Fprintln(app.stdout, message)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "report whether an update exists without installing it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "install without asking")
	return cmd
}
