// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the kiwi CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the kiwi command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "kiwi",
		Short: "Fetch, update and run community modules",
		Long: TitleStyle.Render("kiwi") + SubtitleStyle.Render(" - a package manager for community modules") + `

kiwi keeps a local set of modules in sync with a module registry.
Modules are shell scripts with declared dependencies; kiwi installs
dependencies first and runs modules in an embedded POSIX shell.

` + SubtitleStyle.Render("Examples:") + `
  kiwi list                 Show installed and available modules
  kiwi get greet            Install greet and its dependencies
  kiwi update all           Re-fetch every installed module
  kiwi run greet world      Run an installed module
  kiwi self-update --check  Look for a newer kiwi`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/kiwi/config.cue)")
	root.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.flags.registry, "registry", "", "registry URL, overriding the configuration")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	root.SetIn(app.stdin)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.AddCommand(
		newListCommand(app),
		newGetCommand(app),
		newUpdateCommand(app),
		newRemoveCommand(app),
		newRunCommand(app),
		newSelfUpdateCommand(app),
		newRegistryCommand(app),
		newConfigCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the command's exit code.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}

// positional wraps a cobra argument validator so violations exit with ExitUsage.
func positional(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
