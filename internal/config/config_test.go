// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/kiwi-modules/kiwi/internal/issue"
	"github.com/kiwi-modules/kiwi/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	return testutil.MustWriteFile(t, t.TempDir(), ConfigFileName+"."+ConfigFileExt, content)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Registry.URL != DefaultRegistryURL {
		t.Errorf("Registry.URL = %q, want %q", cfg.Registry.URL, DefaultRegistryURL)
	}
	if cfg.Registry.Timeout != 30*time.Second {
		t.Errorf("Registry.Timeout = %s, want 30s", cfg.Registry.Timeout)
	}
	if !strings.HasSuffix(cfg.ModulesDir, filepath.Join(".kiwi", "modules")) {
		t.Errorf("ModulesDir = %q, want suffix .kiwi/modules", cfg.ModulesDir)
	}
	if cfg.Sync.DetectUpdates != DetectOff {
		t.Errorf("Sync.DetectUpdates = %q, want off", cfg.Sync.DetectUpdates)
	}
	if cfg.SelfUpdate.Owner != "kiwi-modules" || cfg.SelfUpdate.Repo != "kiwi" {
		t.Errorf("SelfUpdate = %+v", cfg.SelfUpdate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigDirXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME is only consulted on Linux and other unixes")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(dir, "kiwi"); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty", cfg.Path)
	}
	if cfg.Registry.URL != DefaultRegistryURL && os.Getenv(EnvRegistryURL) == "" {
		t.Errorf("Registry.URL = %q, want default", cfg.Registry.URL)
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
registry: {
	url:     "http://localhost:8080"
	timeout: "1m30s"
}
sync: detect_updates: "digest"
ui: verbose: true
`)
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: filepath.Dir(path)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Registry.Timeout != 90*time.Second {
		t.Errorf("Registry.Timeout = %s, want 1m30s", cfg.Registry.Timeout)
	}
	if cfg.Sync.DetectUpdates != DetectDigest {
		t.Errorf("Sync.DetectUpdates = %q, want digest", cfg.Sync.DetectUpdates)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true")
	}
	// Unset fields keep their defaults.
	if cfg.SelfUpdate.Repo != "kiwi" {
		t.Errorf("SelfUpdate.Repo = %q, want kiwi", cfg.SelfUpdate.Repo)
	}
}

func TestLoadExpandsHome(t *testing.T) {
	home := testutil.IsolateUserDirs(t)

	path := writeConfig(t, `modules_dir: "~/kiwi-mods"`)
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(home, "kiwi-mods"); cfg.ModulesDir != want {
		t.Errorf("ModulesDir = %q, want %q", cfg.ModulesDir, want)
	}
}

func TestLoadFallsBackToWorkingDir(t *testing.T) {
	testutil.IsolateUserDirs(t)
	wd := t.TempDir()
	t.Chdir(wd)
	testutil.MustWriteFile(t, wd, ConfigFileName+"."+ConfigFileExt, `ui: verbose: true`)

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true from ./config.cue")
	}
}

func TestLoadPrefersConfigDir(t *testing.T) {
	testutil.IsolateUserDirs(t)
	wd := t.TempDir()
	t.Chdir(wd)
	testutil.MustWriteFile(t, wd, ConfigFileName+"."+ConfigFileExt, `ui: verbose: true`)
	path := writeConfig(t, `ui: verbose: false`)

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: filepath.Dir(path)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != path || cfg.UI.Verbose {
		t.Errorf("Load() = path %q verbose %v, want %q false", cfg.Path, cfg.UI.Verbose, path)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
registry: url: "http://from-file.example"
modules_dir: "/from/file"
`)
	modulesDir := t.TempDir()
	t.Setenv(EnvRegistryURL, "http://from-env.example")
	t.Setenv(EnvModulesPath, modulesDir)

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Registry.URL != "http://from-env.example" {
		t.Errorf("Registry.URL = %q, want env value", cfg.Registry.URL)
	}
	if cfg.ModulesDir != modulesDir {
		t.Errorf("ModulesDir = %q, want %q", cfg.ModulesDir, modulesDir)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv(EnvRegistryURL, "ftp://nope")

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadCustomPathNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "missing.cue")})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Load() error = %v, want *issue.ActionableError", err)
	}
	if ae.Issue != issue.ConfigLoadFailedId {
		t.Errorf("Issue = %d, want ConfigLoadFailedId", ae.Issue)
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %q, want 'config file not found'", err)
	}
}

func TestLoadSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax error", `registry: {url: `, ""},
		{"unknown field", `colour: "blue"`, "colour"},
		{"bad detect mode", `sync: detect_updates: "always"`, "detect_updates"},
		{"bool detect mode", `sync: detect_updates: true`, "detect_updates"},
		{"non-http url", `registry: url: "file:///tmp"`, "url"},
		{"bad timeout", `registry: timeout: "soon"`, "timeout"},
		{"empty modules dir", `modules_dir: ""`, "modules_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.content)
			_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() error = nil, want schema violation")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	t.Parallel()
	if os.Getenv(EnvRegistryURL) != "" || os.Getenv(EnvModulesPath) != "" {
		t.Skip("environment overrides are set")
	}

	want := DefaultConfig()
	want.Registry.URL = "https://mirror.example/v1"
	want.Registry.Timeout = 45 * time.Second
	want.ModulesDir = filepath.Join(t.TempDir(), "mods")
	want.Sync.DetectUpdates = DetectPresence
	want.UI.Verbose = true

	path := writeConfig(t, GenerateCUE(want))
	got, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load(GenerateCUE()) error = %v", err)
	}
	got.Path = ""
	if *got != *want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "kiwi")
	path, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("ui: verbose: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateDefaultConfig(dir); err != nil {
		t.Fatalf("second CreateDefaultConfig() error = %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(second) != "ui: verbose: true\n" {
		t.Error("CreateDefaultConfig() overwrote an existing file")
	}
	if !strings.Contains(string(first), `detect_updates: "off"`) {
		t.Errorf("default file missing detect_updates:\n%s", first)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Registry.Timeout = 0
	cfg.ModulesDir = " "
	cfg.Sync.DetectUpdates = "sometimes"

	err := cfg.Validate()
	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Fatalf("Validate() error = %v, want *InvalidConfigError", err)
	}
	if len(invalid.FieldErrors) != 3 {
		t.Errorf("FieldErrors = %v, want 3 entries", invalid.FieldErrors)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("errors.Is(err, ErrInvalidConfig) = false")
	}
}
