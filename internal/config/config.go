// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/kiwi-modules/kiwi/internal/issue"
	"github.com/kiwi-modules/kiwi/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "kiwi"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the kiwi configuration directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS and $XDG_CONFIG_HOME (default
// ~/.config) elsewhere.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("registry.url", defaults.Registry.URL)
	v.SetDefault("registry.timeout", defaults.Registry.Timeout)
	v.SetDefault("modules_dir", defaults.ModulesDir)
	v.SetDefault("sync.detect_updates", defaults.Sync.DetectUpdates)
	v.SetDefault("self_update.owner", defaults.SelfUpdate.Owner)
	v.SetDefault("self_update.repo", defaults.SelfUpdate.Repo)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	// Environment wins over the file.
	if err := v.BindEnv("registry.url", EnvRegistryURL); err != nil {
		return nil, err
	}
	if err := v.BindEnv("modules_dir", EnvModulesPath); err != nil {
		return nil, err
	}

	path, err := resolvePath(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, loadError(path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, loadError(path, fmt.Errorf("failed to parse config: %w", err))
	}
	cfg.ModulesDir = expandHome(cfg.ModulesDir)
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, loadError(path, err)
	}
	return &cfg, nil
}

// resolvePath picks the config file: the explicit path (which must exist),
// then config.cue in the config directory, then config.cue in the working
// directory. An empty result means defaults only.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'kiwi config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	fileName := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(cfgDir, fileName), fileName} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the values match the schema shown by 'kiwi config show --help'").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper parses a CUE file, validates it against #Config and
// merges it into v. Fields are optional, so validation is not concrete and
// the result is decoded into a map for Viper rather than through cueutil.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a config.cue holding the defaults into dir
// (the config directory when empty) unless one exists. It returns the path.
func CreateDefaultConfig(dir string) (string, error) {
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return "", err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cfgPath) {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// kiwi configuration\n")
	sb.WriteString("// See https://kiwi-modules.dev/docs/configuration\n\n")

	sb.WriteString("registry: {\n")
	fmt.Fprintf(&sb, "\turl:     %q\n", cfg.Registry.URL)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Registry.Timeout.String())
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "modules_dir: %q\n\n", cfg.ModulesDir)

	sb.WriteString("sync: {\n")
	fmt.Fprintf(&sb, "\tdetect_updates: %q\n", cfg.Sync.DetectUpdates)
	sb.WriteString("}\n\n")

	sb.WriteString("self_update: {\n")
	fmt.Fprintf(&sb, "\towner: %q\n", cfg.SelfUpdate.Owner)
	fmt.Fprintf(&sb, "\trepo:  %q\n", cfg.SelfUpdate.Repo)
	sb.WriteString("}\n\n")

	sb.WriteString("ui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
