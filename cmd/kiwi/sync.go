// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kiwi-modules/kiwi/internal/engine"
	"github.com/kiwi-modules/kiwi/internal/render"
	"github.com/kiwi-modules/kiwi/internal/tui"
)

const updatePrompt = "Update the outdated modules?"

type syncParams struct {
	request engine.Request
	format  render.Format
	detect  engine.UpdateDetection
	yes     bool
	strict  bool
}

// parseSyncParams rejects usage errors before any engine call.
func parseSyncParams(args []string, format, detect string) (syncParams, error) {
	req, err := engine.ParseRequest(args)
	if err != nil {
		return syncParams{}, usageError(err)
	}
	f, err := parseFormat(format)
	if err != nil {
		return syncParams{}, err
	}
	d := engine.UpdateDetection(detect)
	if d != "" {
		if err := d.Validate(); err != nil {
			return syncParams{}, usageError(err)
		}
	}
	return syncParams{request: req, format: f, detect: d}, nil
}

func newGetCommand(app *App) *cobra.Command {
	var format, detect string
	var yes, strict bool

	cmd := &cobra.Command{
		Use:   "get <module...|all>",
		Short: "Install modules and their dependencies",
		Long: `Install the named modules, or every module in the registry with 'all'.

Dependencies are installed first. Modules that are already installed are
left alone; with update detection enabled they are reported as updatable
and kiwi offers to update them.`,
		Example: `  kiwi get greet
  kiwi get fmt io --format json
  kiwi get all --detect-updates digest --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseSyncParams(args, format, detect)
			if err != nil {
				return err
			}
			p.yes, p.strict = yes, strict
			return runGet(cmd.Context(), app, p)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(render.Text), formatFlagUsage())
	cmd.Flags().StringVar(&detect, "detect-updates", "", "report installed modules as updatable: off, presence or digest (default from config)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "update outdated modules without asking")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 when any module fails")
	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	var format string
	var strict bool

	cmd := &cobra.Command{
		Use:   "update <module...|all>",
		Short: "Re-fetch installed modules",
		Long: `Download and reinstall the named installed modules, or all of them.

Updating always overwrites the installed copy. Missing dependencies are
installed; dependencies that are already installed are left untouched.`,
		Example: `  kiwi update greet
  kiwi update all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseSyncParams(args, format, "")
			if err != nil {
				return err
			}
			p.strict = strict
			return runUpdate(cmd.Context(), app, p)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(render.Text), formatFlagUsage())
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 when any module fails")
	return cmd
}

func runGet(ctx context.Context, app *App, p syncParams) error {
	svc, err := app.services(ctx)
	if err != nil {
		return app.fail("load configuration", err)
	}
	eng := app.syncEngine(svc, p.detect)

	res, err := eng.Fetch(ctx, p.request)
	if err != nil {
		return app.fail("fetch modules", err)
	}
	if err := writeResult(app.stdout, p.format, res); err != nil {
		return err
	}
	failed := res.HasFailures()

	if len(res.Updatable) > 0 {
		answer, err := app.prompter(p.yes).Ask(updatePrompt, tui.Yes, tui.No)
		if err != nil && !errors.Is(err, tui.ErrNoInput) {
			return app.fail("read answer", err)
		}
		if answer == tui.Yes {
			upd, err := eng.Update(ctx, engine.Request{Names: res.Updatable})
			if err != nil {
				return app.fail("update modules", err)
			}
			if err := writeResult(app.stdout, p.format, upd); err != nil {
				return err
			}
			failed = failed || upd.HasFailures()
		}
	}

	return strictExit(p.strict, failed)
}

func runUpdate(ctx context.Context, app *App, p syncParams) error {
	svc, err := app.services(ctx)
	if err != nil {
		return app.fail("load configuration", err)
	}

	res, err := app.syncEngine(svc, "").Update(ctx, p.request)
	if err != nil {
		return app.fail("update modules", err)
	}
	if err := writeResult(app.stdout, p.format, res); err != nil {
		return err
	}
	return strictExit(p.strict, res.HasFailures())
}

func strictExit(strict, failed bool) error {
	if strict && failed {
		return &ExitError{Code: ExitFailure, Err: errors.New("some modules failed")}
	}
	return nil
}
