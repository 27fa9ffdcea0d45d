// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/interp"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

const builtinName = "kiwi"

// builtin intercepts the "kiwi" command; everything else runs as usual.
func (r *Runner) builtin(c Capability, depth int) func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 || args[0] != builtinName {
				return next(ctx, args)
			}
			hc := interp.HandlerCtx(ctx)
			return r.dispatch(ctx, c, depth, args[1:], IO{Stdin: hc.Stdin, Stdout: hc.Stdout, Stderr: hc.Stderr})
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, c Capability, depth int, args []string, stdio IO) error {
	if len(args) == 0 {
		return usage(stdio.Stderr, "kiwi: missing subcommand (name, installed, describe, ask, serverside, run)")
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "name":
		_, _ = fmt.Fprintln(stdio.Stdout, c.ModuleName())
		return nil

	case "installed":
		names, err := c.InstalledModules()
		if err != nil {
			return fail(stdio.Stderr, err)
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(stdio.Stdout, n)
		}
		return nil

	case "describe":
		if len(rest) != 1 {
			return usage(stdio.Stderr, "usage: kiwi describe <module>")
		}
		text, err := c.Description(kiwimod.Name(rest[0]))
		if err != nil {
			return fail(stdio.Stderr, err)
		}
		_, _ = fmt.Fprintln(stdio.Stdout, text)
		return nil

	case "ask":
		if len(rest) < 2 {
			return usage(stdio.Stderr, "usage: kiwi ask <prompt> <choice>...")
		}
		answer, err := c.Ask(rest[0], rest[1:]...)
		if err != nil {
			return fail(stdio.Stderr, err)
		}
		_, _ = fmt.Fprintln(stdio.Stdout, answer)
		return nil

	case "serverside":
		out, err := c.Serverside(ctx, rest)
		if err != nil {
			return fail(stdio.Stderr, err)
		}
		_, _ = fmt.Fprintln(stdio.Stdout, strings.TrimSuffix(out, "\n"))
		return nil

	case "run":
		if len(rest) == 0 {
			return usage(stdio.Stderr, "usage: kiwi run <module> [args...]")
		}
		code, err := r.run(ctx, kiwimod.Name(rest[0]), rest[1:], stdio, depth+1)
		if err != nil {
			return fail(stdio.Stderr, err)
		}
		if code != 0 {
			return interp.ExitStatus(code)
		}
		return nil

	default:
		return usage(stdio.Stderr, fmt.Sprintf("kiwi: unknown subcommand %q", sub))
	}
}

func usage(w io.Writer, msg string) error {
	_, _ = fmt.Fprintln(w, msg)
	return interp.ExitStatus(2)
}

func fail(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "kiwi: %v\n", err)
	return interp.ExitStatus(1)
}
