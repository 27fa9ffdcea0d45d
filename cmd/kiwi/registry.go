// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kiwi-modules/kiwi/internal/registry"
	"github.com/kiwi-modules/kiwi/internal/runner"
	"github.com/kiwi-modules/kiwi/internal/store"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

const shutdownTimeout = 5 * time.Second

func newRegistryCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Work with module registries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newRegistryServeCommand(app))
	return cmd
}

func newRegistryServeCommand(app *App) *cobra.Command {
	var (
		addr, dir  string
		serverside bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a modules directory as a registry",
		Long: `Serve the modules in a directory over the registry HTTP API.

Point another kiwi at it with --registry http://<addr>. The directory
defaults to your own modules directory.

With --serverside, "kiwi serverside" calls from clients run the module here
with KIWI_SERVERSIDE=1 set and return its output.`,
		Example: `  kiwi registry serve --addr 127.0.0.1:8080
  kiwi registry serve --dir ./modules --serverside`,
		Args: positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				cfg, err := app.loadConfig(cmd.Context())
				if err != nil {
					return app.fail("load configuration", err)
				}
				dir = cfg.ModulesDir
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return app.fail("listen on "+addr, err)
			}
			if err := serveRegistry(cmd.Context(), app, ln, store.New(dir, store.WithLogger(app.logger)), serverside); err != nil {
				return app.fail("serve registry", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "address to listen on")
	cmd.Flags().StringVar(&dir, "dir", "", "modules directory to serve (default from config)")
	cmd.Flags().BoolVar(&serverside, "serverside", false, "run server-side module logic for clients")
	return cmd
}

// serveRegistry serves st on ln until ctx is done.
func serveRegistry(ctx context.Context, app *App, ln net.Listener, st *store.Store, serverside bool) error {
	names, err := st.List()
	if err != nil {
		return err
	}

	opts := []registry.ServerOption{registry.WithServerLogger(app.logger)}
	if serverside {
		opts = append(opts, registry.WithServerside(serversideRunner(st, app.logger)))
	}
	l := registry.NewListener(registry.NewServer(st, opts...))
	if err := l.Start(ctx, ln); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(app.stdout, "Serving %d modules from %s on http://%s\n", len(names), st.Root(), l.Addr())

	select {
	case <-l.Done():
		return l.Err()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return l.Stop(shutdownCtx)
}

// serversideRunner runs modules from st in server-side mode.
func serversideRunner(st *store.Store, logger *log.Logger) registry.ServersideFunc {
	r := runner.New(st,
		runner.WithEnv(append(os.Environ(), "KIWI_SERVERSIDE=1")),
		runner.WithDir(st.Root()),
		runner.WithLogger(logger),
	)
	return func(ctx context.Context, desc kiwimod.Descriptor, args []string) (string, error) {
		return r.Output(ctx, desc.Name, args)
	}
}
