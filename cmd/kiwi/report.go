// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kiwi-modules/kiwi/internal/config"
	"github.com/kiwi-modules/kiwi/internal/engine"
	"github.com/kiwi-modules/kiwi/internal/issue"
	"github.com/kiwi-modules/kiwi/internal/registry"
	"github.com/kiwi-modules/kiwi/internal/resolver"
	"github.com/kiwi-modules/kiwi/internal/store"
)

// fail prints err for the user and returns it as an ExitError. Errors that
// already carry an exit code keep it.
func (a *App) fail(operation string, err error) error {
	code := ExitFailure
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	ae := actionable(operation, err)
	_, _ = fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+ae.Format(a.flags.verbose))
	if a.flags.verbose && ae.Issue != 0 {
		a.renderIssue(a.stderr, ae.Issue)
	}
	return &ExitError{Code: code, Err: err}
}

func (a *App) renderIssue(w io.Writer, id issue.Id) {
	is := issue.Get(id)
	if is == nil {
		return
	}
	style := "notty"
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		style = "dark"
	}
	page, err := is.Render(style)
	if err != nil {
		a.logger.Debug("rendering issue page failed", "issue", id, "error", err)
		return
	}
	_, _ = fmt.Fprint(w, page)
}

// actionable attaches suggestions and a help page to well-known errors.
func actionable(operation string, err error) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ctx := issue.NewErrorContext().WithOperation(operation).Wrap(err)
	switch {
	case errors.Is(err, engine.ErrUsageConflict):
		ctx.WithIssue(issue.UsageConflictId).
			WithSuggestion("Name modules explicitly or pass 'all' on its own")
	case registry.IsUnreachable(err):
		ctx.WithIssue(issue.RegistryUnreachableId).
			WithSuggestion("Check your network connection and the registry URL ('kiwi config show')").
			WithSuggestion("Use --registry to try another registry")
	case errors.Is(err, registry.ErrDigestMismatch):
		ctx.WithIssue(issue.DigestMismatchId).WithSuggestion("Retry the download")
	case errors.Is(err, resolver.ErrDependencyCycle):
		ctx.WithIssue(issue.DependencyCycleId)
	case errors.Is(err, resolver.ErrUnknownDependency):
		ctx.WithIssue(issue.UnknownDependencyId)
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, resolver.ErrModuleNotFound):
		ctx.WithIssue(issue.ModuleNotFoundId).WithSuggestion("Run 'kiwi list' to see available modules")
	case errors.Is(err, store.ErrNotInstalled):
		ctx.WithIssue(issue.ModuleNotInstalledId).WithSuggestion("Install it with 'kiwi get <module>'")
	case errors.Is(err, os.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId)
	case errors.Is(err, config.ErrInvalidConfig):
		ctx.WithIssue(issue.ConfigLoadFailedId)
	}
	return ctx.Build()
}
