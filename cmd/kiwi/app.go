// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/kiwi-modules/kiwi/internal/config"
	"github.com/kiwi-modules/kiwi/internal/engine"
	"github.com/kiwi-modules/kiwi/internal/registry"
	"github.com/kiwi-modules/kiwi/internal/runner"
	"github.com/kiwi-modules/kiwi/internal/selfupdate"
	"github.com/kiwi-modules/kiwi/internal/store"
	"github.com/kiwi-modules/kiwi/internal/tui"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// SelfUpdaterFactory builds the updater behind `kiwi self-update`.
	SelfUpdaterFactory func(cfg *config.Config) selfupdate.Checker

	// App is the composition root of the CLI. Command handlers receive it and
	// build their services through it.
	App struct {
		Config      ConfigProvider
		SelfUpdater SelfUpdaterFactory

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		logger *log.Logger
		flags  globalFlags

		cfg *config.Config
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config      ConfigProvider
		SelfUpdater SelfUpdaterFactory
		Stdin       io.Reader
		Stdout      io.Writer
		Stderr      io.Writer
	}

	globalFlags struct {
		configPath string
		verbose    bool
		registry   string
	}

	// services are the components one command works with.
	services struct {
		cfg      *config.Config
		store    *store.Store
		registry *registry.Client
	}
)

// NewApp builds an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:      deps.Config,
		SelfUpdater: deps.SelfUpdater,
		stdin:       deps.Stdin,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.SelfUpdater == nil {
		app.SelfUpdater = defaultSelfUpdater
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	app.logger = log.NewWithOptions(app.stderr, log.Options{Prefix: "kiwi", Level: log.WarnLevel})
	return app
}

// loadConfig loads the configuration once per process and applies the
// global flag overrides.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, err
	}
	if a.flags.registry != "" {
		cfg.Registry.URL = a.flags.registry
		if err := cfg.Validate(); err != nil {
			return nil, usageError(err)
		}
	}
	if cfg.UI.Verbose {
		a.flags.verbose = true
	}
	if a.flags.verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	a.logger.Debug("configuration loaded", "path", cfg.Path, "registry", cfg.Registry.URL, "modules_dir", cfg.ModulesDir)

	a.cfg = cfg
	return cfg, nil
}

func (a *App) services(ctx context.Context) (*services, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &services{
		cfg:   cfg,
		store: store.New(cfg.ModulesDir, store.WithLogger(a.logger)),
		registry: registry.NewClient(cfg.Registry.URL,
			registry.WithTimeout(cfg.Registry.Timeout),
			registry.WithUserAgent("kiwi/"+Version),
			registry.WithLogger(a.logger),
		),
	}, nil
}

// syncEngine builds a sync engine. An empty detect uses the configured mode.
func (a *App) syncEngine(svc *services, detect engine.UpdateDetection) *engine.Engine {
	if detect == "" {
		detect = engine.UpdateDetection(svc.cfg.Sync.DetectUpdates)
	}
	return engine.New(svc.registry, svc.store,
		engine.WithLogger(a.logger),
		engine.WithUpdateDetection(detect),
	)
}

func (a *App) moduleRunner(svc *services) *runner.Runner {
	return runner.New(svc.store,
		runner.WithInstaller(a.syncEngine(svc, engine.DetectOff)),
		runner.WithAsker(a.prompter(false)),
		runner.WithServerside(svc.registry),
		runner.WithLogger(a.logger),
	)
}

func (a *App) prompter(assumeYes bool) *tui.Prompter {
	return tui.New(a.stdin, a.stderr, tui.WithAssumeYes(assumeYes))
}

func defaultSelfUpdater(cfg *config.Config) selfupdate.Checker {
	opts := []selfupdate.ClientOption{
		selfupdate.WithRepo(cfg.SelfUpdate.Owner, cfg.SelfUpdate.Repo),
		selfupdate.WithUserAgent("kiwi/" + Version),
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		opts = append(opts, selfupdate.WithToken(token))
	}
	return selfupdate.NewUpdater(Version, selfupdate.WithGitHubClient(selfupdate.NewGitHubClient(opts...)))
}
