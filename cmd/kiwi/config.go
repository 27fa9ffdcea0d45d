// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kiwi-modules/kiwi/internal/config"
	"github.com/kiwi-modules/kiwi/internal/render"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kiwi configuration",
		Long: `Manage kiwi configuration.

Configuration is stored in:
  - Linux: $XDG_CONFIG_HOME/kiwi/config.cue (~/.config/kiwi/config.cue)
  - macOS: ~/Library/Application Support/kiwi/config.cue
  - Windows: %APPDATA%\kiwi\config.cue

Keys: registry.url, registry.timeout, modules_dir, sync.detect_updates
(off, presence or digest), self_update.owner, self_update.repo and
ui.verbose. KIWI_REGISTRY_URL and KIWI_MODULES_PATH override the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail("load configuration", err)
			}
			return render.Write(app.stdout, f, cfg, func(w io.Writer) error {
				source := "built-in defaults"
				if cfg.Path != "" {
					source = cfg.Path
				}
				if _, err := fmt.Fprintln(w, SubtitleStyle.Render("// source: "+source)); err != nil {
					return err
				}
				_, err := io.WriteString(w, config.GenerateCUE(cfg))
				return err
			})
		},
	}
	show.Flags().StringVarP(&format, "format", "f", string(render.Text), formatFlagUsage())

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  positional(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig("")
			if err != nil {
				return app.fail("create configuration", err)
			}
			_, _ = fmt.Fprintln(app.stdout, "Configuration file: "+path)
			return nil
		},
	}

	cfgCmd.AddCommand(show, initCmd)
	return cfgCmd
}
