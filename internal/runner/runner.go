// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/kiwi-modules/kiwi/internal/engine"
	"github.com/kiwi-modules/kiwi/internal/tui"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

// maxDepth bounds nested "kiwi run" calls.
const maxDepth = 16

// ErrTooDeep is returned when modules run each other more than maxDepth levels deep.
var ErrTooDeep = errors.New("module run nesting too deep")

type (
	// Store is the read side of the installed-module store.
	Store interface {
		List() ([]kiwimod.Name, error)
		Descriptor(name kiwimod.Name) (kiwimod.Descriptor, error)
		Has(name kiwimod.Name) bool
		Root() string
	}

	// Installer fetches modules that are missing; *engine.Engine satisfies it.
	Installer interface {
		Fetch(ctx context.Context, req engine.Request) (*engine.Result, error)
	}

	// IO is the standard streams of a run.
	IO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Runner runs installed modules.
	Runner struct {
		store     Store
		installer  Installer
		asker      Asker
		serverside Serversider
		logger     *log.Logger
		env        []string
		dir        string
	}

	// Option configures a Runner.
	Option func(*Runner)
)

// WithInstaller lets Run fetch a module and its dependencies when they are missing.
func WithInstaller(i Installer) Option {
	return func(r *Runner) { r.installer = i }
}

// WithAsker sets the prompter behind "kiwi ask". By default a line prompter
// over the run's stdin and stderr is used.
func WithAsker(a Asker) Option {
	return func(r *Runner) { r.asker = a }
}

// WithServerside sets where "kiwi serverside" sends its calls.
func WithServerside(s Serversider) Option {
	return func(r *Runner) { r.serverside = s }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEnv sets the base environment (default os.Environ()).
func WithEnv(env []string) Option {
	return func(r *Runner) { r.env = env }
}

// WithDir sets the working directory of scripts (default: the current directory).
func WithDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// New returns a runner for modules in store.
func New(store Store, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		logger: log.New(io.Discard),
		env:    os.Environ(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes module name with args and returns its exit code. A non-nil
// error means the module could not be started; script failures are reported
// through the exit code.
func (r *Runner) Run(ctx context.Context, name kiwimod.Name, args []string, stdio IO) (int, error) {
	return r.run(ctx, name, args, stdio, 0)
}

// Output runs module name with args and no input and returns what it wrote to
// stdout. A non-zero exit is an error carrying the module's stderr.
func (r *Runner) Output(ctx context.Context, name kiwimod.Name, args []string) (string, error) {
	var stdout, stderr bytes.Buffer
	code, err := r.run(ctx, name, args, IO{Stdout: &stdout, Stderr: &stderr}, 0)
	if err != nil {
		return "", err
	}
	if code != 0 {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("module %s exited with status %d: %s", name, code, msg)
		}
		return "", fmt.Errorf("module %s exited with status %d", name, code)
	}
	return stdout.String(), nil
}

func (r *Runner) run(ctx context.Context, name kiwimod.Name, args []string, stdio IO, depth int) (int, error) {
	if depth >= maxDepth {
		return 1, fmt.Errorf("%w: %s", ErrTooDeep, name)
	}
	if err := name.Validate(); err != nil {
		return 1, err
	}
	if err := r.ensureInstalled(ctx, name); err != nil {
		return 1, err
	}

	desc, err := r.store.Descriptor(name)
	if err != nil {
		return 1, err
	}

	prog, err := syntax.NewParser().Parse(bytes.NewReader(desc.Content), string(name))
	if err != nil {
		return 1, fmt.Errorf("parsing module %s: %w", name, err)
	}

	stdio = withDefaults(stdio)
	asker := r.asker
	if asker == nil {
		asker = tui.New(stdio.Stdin, stdio.Stderr)
	}
	capability := &moduleCapability{name: name, store: r.store, asker: asker, serverside: r.serverside}

	env := append(append([]string(nil), r.env...),
		"KIWI_MODULE="+string(name),
		"KIWI_MODULES_DIR="+r.store.Root(),
	)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(stdio.Stdin, stdio.Stdout, stdio.Stderr),
		interp.ExecHandlers(r.builtin(capability, depth)),
	}
	if r.dir != "" {
		opts = append(opts, interp.Dir(r.dir))
	}
	// "--" keeps args such as "-v" from being read as shell options.
	opts = append(opts, interp.Params(append([]string{"--"}, args...)...))

	sh, err := interp.New(opts...)
	if err != nil {
		return 1, fmt.Errorf("creating interpreter: %w", err)
	}

	r.logger.Debug("running module", "module", name, "args", args, "depth", depth)
	if err := sh.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return int(status), nil
		}
		return 1, fmt.Errorf("running module %s: %w", name, err)
	}
	return 0, nil
}

// ensureInstalled fetches name when missing, then any of its direct
// dependencies that have since disappeared.
func (r *Runner) ensureInstalled(ctx context.Context, name kiwimod.Name) error {
	if !r.store.Has(name) {
		if r.installer == nil {
			return fmt.Errorf("module %s is not installed", name)
		}
		if err := r.fetch(ctx, []kiwimod.Name{name}); err != nil {
			return err
		}
	}
	if r.installer == nil {
		return nil
	}

	desc, err := r.store.Descriptor(name)
	if err != nil {
		return err
	}
	var missing []kiwimod.Name
	for _, dep := range desc.Dependencies {
		if !r.store.Has(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	r.logger.Info("fetching missing dependencies", "module", name, "dependencies", missing)
	return r.fetch(ctx, missing)
}

func (r *Runner) fetch(ctx context.Context, names []kiwimod.Name) error {
	res, err := r.installer.Fetch(ctx, engine.Request{Names: names})
	if err != nil {
		return err
	}
	if res.HasFailures() {
		return res.Failed[0]
	}
	return nil
}

func withDefaults(stdio IO) IO {
	if stdio.Stdin == nil {
		stdio.Stdin = bytes.NewReader(nil)
	}
	if stdio.Stdout == nil {
		stdio.Stdout = io.Discard
	}
	if stdio.Stderr == nil {
		stdio.Stderr = io.Discard
	}
	return stdio
}
