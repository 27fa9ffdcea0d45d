// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiwi-modules/kiwi/internal/config"
	"github.com/kiwi-modules/kiwi/internal/registry"
	"github.com/kiwi-modules/kiwi/internal/selfupdate"
	"github.com/kiwi-modules/kiwi/internal/store"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

type (
	staticConfig struct{ cfg *config.Config }

	testRegistry struct {
		store    *store.Store
		server   *httptest.Server
		requests atomic.Int64
	}

	testEnv struct {
		app      *App
		stdout   *bytes.Buffer
		stderr   *bytes.Buffer
		modules  *store.Store
		registry *testRegistry
	}

	fakeChecker struct {
		check    *selfupdate.UpgradeCheck
		checkErr error
		applied  bool
	}
)

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	cfg := *s.cfg
	return &cfg, nil
}

func (f *fakeChecker) Check(context.Context) (*selfupdate.UpgradeCheck, error) {
	return f.check, f.checkErr
}

func (f *fakeChecker) Apply(context.Context, *selfupdate.Release) error {
	f.applied = true
	return nil
}

func module(name, script string, deps ...string) kiwimod.Descriptor {
	return kiwimod.Descriptor{
		Name:         kiwimod.Name(name),
		Description:  "the " + name + " module",
		Dependencies: kiwimod.Names(deps...),
	}.WithContent([]byte(script))
}

func newTestRegistry(t *testing.T, mods ...kiwimod.Descriptor) *testRegistry {
	t.Helper()
	reg := &testRegistry{store: store.New(filepath.Join(t.TempDir(), "registry"))}
	for _, m := range mods {
		if err := reg.store.Install(m); err != nil {
			t.Fatalf("seeding registry with %s: %v", m.Name, err)
		}
	}
	handler := registry.NewServer(reg.store, registry.WithServerside(serversideRunner(reg.store, nil)))
	reg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.requests.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(reg.server.Close)
	return reg
}

// newTestEnv builds an App whose registry is reg (nil means unreachable)
// and whose modules directory is empty apart from installed.
func newTestEnv(t *testing.T, reg *testRegistry, stdin string, installed ...kiwimod.Descriptor) *testEnv {
	t.Helper()

	url := ""
	if reg != nil {
		url = reg.server.URL
	} else {
		closed := httptest.NewServer(http.NotFoundHandler())
		url = closed.URL
		closed.Close()
	}

	cfg := config.DefaultConfig()
	cfg.Registry.URL = url
	cfg.Registry.Timeout = 5 * time.Second
	cfg.ModulesDir = filepath.Join(t.TempDir(), "modules")

	env := &testEnv{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		modules:  store.New(cfg.ModulesDir),
		registry: reg,
	}
	for _, m := range installed {
		if err := env.modules.Install(m); err != nil {
			t.Fatalf("installing %s: %v", m.Name, err)
		}
	}
	env.app = NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		Stdin:  strings.NewReader(stdin),
		Stdout: env.stdout,
		Stderr: env.stderr,
	})
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(e.app)
	root.SetArgs(args)
	return root.ExecuteContext(t.Context())
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
