// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultRegistryURL is the public registry.
	DefaultRegistryURL = "https://registry.kiwi-modules.dev/v1"
	// DefaultRegistryTimeout bounds each registry request.
	DefaultRegistryTimeout = 30 * time.Second

	// EnvRegistryURL overrides registry.url.
	EnvRegistryURL = "KIWI_REGISTRY_URL"
	// EnvModulesPath overrides modules_dir.
	EnvModulesPath = "KIWI_MODULES_PATH"

	// DetectOff, DetectPresence and DetectDigest are the sync.detect_updates values.
	DetectOff      = "off"
	DetectPresence = "presence"
	DetectDigest   = "digest"
)

// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Registry   RegistryConfig   `json:"registry" yaml:"registry" toml:"registry" mapstructure:"registry"`
		ModulesDir string           `json:"modules_dir" yaml:"modules_dir" toml:"modules_dir" mapstructure:"modules_dir"`
		Sync       SyncConfig       `json:"sync" yaml:"sync" toml:"sync" mapstructure:"sync"`
		SelfUpdate SelfUpdateConfig `json:"self_update" yaml:"self_update" toml:"self_update" mapstructure:"self_update"`
		UI         UIConfig         `json:"ui" yaml:"ui" toml:"ui" mapstructure:"ui"`

		// Path is the file the configuration was read from, empty for defaults only.
		Path string `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
	}

	// RegistryConfig locates the module registry.
	RegistryConfig struct {
		URL     string        `json:"url" yaml:"url" toml:"url" mapstructure:"url"`
		Timeout time.Duration `json:"timeout" yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	}

	// SyncConfig tunes get and update.
	SyncConfig struct {
		// DetectUpdates is off, presence or digest.
		DetectUpdates string `json:"detect_updates" yaml:"detect_updates" toml:"detect_updates" mapstructure:"detect_updates"`
	}

	// SelfUpdateConfig names the GitHub repository releases come from.
	SelfUpdateConfig struct {
		Owner string `json:"owner" yaml:"owner" toml:"owner" mapstructure:"owner"`
		Repo  string `json:"repo" yaml:"repo" toml:"repo" mapstructure:"repo"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		Verbose bool `json:"verbose" yaml:"verbose" toml:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			URL:     DefaultRegistryURL,
			Timeout: DefaultRegistryTimeout,
		},
		ModulesDir: DefaultModulesDir(),
		Sync:       SyncConfig{DetectUpdates: DetectOff},
		SelfUpdate: SelfUpdateConfig{Owner: "kiwi-modules", Repo: "kiwi"},
	}
}

// DefaultModulesDir returns ~/.kiwi/modules, or a relative .kiwi/modules when
// the home directory is unknown.
func DefaultModulesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".kiwi", "modules")
	}
	return filepath.Join(home, ".kiwi", "modules")
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks constraints the schema cannot see, such as values that
// arrive through environment variables.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Registry.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("registry.url %q must be an http(s) URL", c.Registry.URL))
	}
	if c.Registry.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("registry.timeout must be positive, got %s", c.Registry.Timeout))
	}
	if strings.TrimSpace(c.ModulesDir) == "" {
		errs = append(errs, errors.New("modules_dir must not be empty"))
	}
	switch c.Sync.DetectUpdates {
	case DetectOff, DetectPresence, DetectDigest:
	default:
		errs = append(errs, fmt.Errorf("sync.detect_updates %q must be off, presence or digest", c.Sync.DetectUpdates))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
