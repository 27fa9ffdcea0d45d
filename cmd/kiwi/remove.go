// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kiwi-modules/kiwi/internal/engine"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

func newRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <module...>",
		Aliases: []string{"rm"},
		Short:   "Uninstall modules",
		Long: `Remove installed modules from the modules directory.

Modules that depend on a removed module are kept; kiwi warns about them
and 'kiwi run' fetches the missing dependency again when needed.`,
		Args: positional(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := kiwimod.Dedupe(kiwimod.Names(args...))
			if slices.Contains(names, kiwimod.Name(kiwimod.AllSentinel)) {
				return usageError(fmt.Errorf("%w: remove takes module names, not 'all'", engine.ErrUsageConflict))
			}

			svc, err := app.services(cmd.Context())
			if err != nil {
				return app.fail("load configuration", err)
			}

			var errs []error
			var removed []kiwimod.Name
			for _, name := range names {
				if err := svc.store.Remove(name); err != nil {
					errs = append(errs, err)
					_, _ = fmt.Fprintln(app.stderr, ErrorStyle.Render(string(name)+":")+" "+err.Error())
					continue
				}
				removed = append(removed, name)
				_, _ = fmt.Fprintln(app.stdout, SuccessStyle.Render("Removed")+" "+ModuleStyle.Render(string(name)))
			}

			warnDependents(app, svc, removed)

			if len(errs) > 0 {
				return app.fail("remove modules", errors.Join(errs...))
			}
			return nil
		},
	}
}

// warnDependents reports installed modules left with a removed dependency.
func warnDependents(app *App, svc *services, removed []kiwimod.Name) {
	mods, err := svc.store.Modules()
	if err != nil {
		app.logger.Debug("cannot scan dependents", "error", err)
		return
	}
	for _, m := range mods {
		for _, dep := range m.Dependencies {
			if slices.Contains(removed, dep) {
				_, _ = fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+
					fmt.Sprintf("%s depends on removed module %s", m.Name, dep))
			}
		}
	}
}
