// SPDX-License-Identifier: MPL-2.0

package store

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kiwi-modules/kiwi/pkg/cueutil"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

// ManifestSuffix is appended to a module name to form its manifest filename.
const ManifestSuffix = ".kiwimod.cue"

var (
	//go:embed module_schema.cue
	moduleSchema string

	// ErrNotInstalled is returned when a module is not present in the store.
	ErrNotInstalled = errors.New("module not installed")

	// ErrCorruptManifest is returned when a manifest's digest does not match its content.
	ErrCorruptManifest = errors.New("corrupt module manifest")

	// ErrTooLarge is returned by Install for modules whose manifest would
	// exceed what Descriptor reads back.
	ErrTooLarge = errors.New("module too large")
)

type (
	// Store is the installed-module set rooted at a single directory.
	Store struct {
		root   string
		logger *log.Logger
	}

	// Option configures a Store.
	Option func(*Store)

	// NotInstalledError names the module that was not found.
	// It matches both ErrNotInstalled and fs.ErrNotExist.
	NotInstalledError struct {
		Name kiwimod.Name
	}

	// manifest is the on-disk representation of a module.
	manifest struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Dependencies []string `json:"dependencies"`
		Content      string   `json:"content"`
		Digest       string   `json:"digest"`
	}
)

// Error implements the error interface.
func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("module %q is not installed", e.Name)
}

// Is reports whether target is ErrNotInstalled or fs.ErrNotExist.
func (e *NotInstalledError) Is(target error) bool {
	return target == ErrNotInstalled || target == fs.ErrNotExist
}

// WithLogger sets the logger used for install and remove events.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a store rooted at root. The directory is created on first install.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:   root,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Path returns the manifest path for name.
func (s *Store) Path(name kiwimod.Name) string {
	return filepath.Join(s.root, string(name)+ManifestSuffix)
}

// List returns the names of installed modules, sorted. A missing root
// directory yields an empty list.
func (s *Store) List() ([]kiwimod.Name, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading modules directory %s: %w", s.root, err)
	}

	names := make([]kiwimod.Name, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base, ok := strings.CutSuffix(e.Name(), ManifestSuffix)
		if !ok {
			continue
		}
		name := kiwimod.Name(base)
		// Temp files start with '.', which also fails validation.
		if name.Validate() != nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Has reports whether name is installed.
func (s *Store) Has(name kiwimod.Name) bool {
	if name.Validate() != nil {
		return false
	}
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Descriptor loads the installed module, content included.
func (s *Store) Descriptor(name kiwimod.Name) (kiwimod.Descriptor, error) {
	if err := name.Validate(); err != nil {
		return kiwimod.Descriptor{}, err
	}

	path := s.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return kiwimod.Descriptor{}, &NotInstalledError{Name: name}
		}
		return kiwimod.Descriptor{}, fmt.Errorf("reading %s: %w", path, err)
	}

	result, err := cueutil.ParseAndDecodeString[manifest](moduleSchema, data, "#Module",
		cueutil.WithFilename(path),
		cueutil.WithMaxFileSize(maxManifestSize))
	if err != nil {
		return kiwimod.Descriptor{}, err
	}
	m := result.Value

	if m.Name != string(name) {
		return kiwimod.Descriptor{}, fmt.Errorf("%s: manifest declares name %q", path, m.Name)
	}
	content, err := base64.StdEncoding.DecodeString(m.Content)
	if err != nil {
		return kiwimod.Descriptor{}, fmt.Errorf("%s: content: %w: %w", path, ErrCorruptManifest, err)
	}
	if kiwimod.Digest(content) != m.Digest {
		return kiwimod.Descriptor{}, fmt.Errorf("%s: %w", path, ErrCorruptManifest)
	}

	desc := kiwimod.Descriptor{
		Name:         name,
		Description:  m.Description,
		Dependencies: kiwimod.Names(m.Dependencies...),
		Digest:       m.Digest,
		Content:      content,
	}
	if err := desc.Validate(); err != nil {
		return kiwimod.Descriptor{}, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// Modules returns every installed module with its content, sorted by name.
func (s *Store) Modules() ([]kiwimod.Descriptor, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]kiwimod.Descriptor, 0, len(names))
	for _, name := range names {
		desc, err := s.Descriptor(name)
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}

// Install writes desc to the store, replacing any existing copy. Installing a
// module whose manifest would be byte-identical is a no-op.
func (s *Store) Install(desc kiwimod.Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	deps := kiwimod.Strings(desc.Dependencies)
	if deps == nil {
		deps = []string{}
	}
	content := desc.Content
	if len(content) > kiwimod.MaxContentSize {
		return fmt.Errorf("%w: %s has %d bytes of content, limit %d", ErrTooLarge, desc.Name, len(content), kiwimod.MaxContentSize)
	}

	src, err := cueutil.Encode(manifest{
		Name:         string(desc.Name),
		Description:  desc.Description,
		Dependencies: deps,
		Content:      base64.StdEncoding.EncodeToString(content),
		Digest:       kiwimod.Digest(content),
	})
	if err != nil {
		return fmt.Errorf("encoding module %s: %w", desc.Name, err)
	}
	if int64(len(src)) > maxManifestSize {
		return fmt.Errorf("%w: %s manifest is %d bytes, limit %d", ErrTooLarge, desc.Name, len(src), maxManifestSize)
	}

	path := s.Path(desc.Name)
	if existing, readErr := os.ReadFile(path); readErr == nil && bytes.Equal(existing, src) {
		s.logger.Debug("module already up to date", "module", desc.Name)
		return nil
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("creating modules directory: %w", err)
	}
	if err := writeAtomic(s.root, path, src); err != nil {
		return fmt.Errorf("installing module %s: %w", desc.Name, err)
	}

	s.logger.Debug("installed module", "module", desc.Name, "bytes", len(content))
	return nil
}

// Remove deletes an installed module.
func (s *Store) Remove(name kiwimod.Name) error {
	if err := name.Validate(); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotInstalledError{Name: name}
		}
		return fmt.Errorf("removing module %s: %w", name, err)
	}
	s.logger.Debug("removed module", "module", name)
	return nil
}

// writeAtomic writes data to a temp file in dir and renames it over path.
func writeAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".kiwi-install-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpPath) // best-effort cleanup
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	renamed = true
	return nil
}

// maxManifestSize bounds a single manifest: the base64 form of the largest
// allowed content plus room for the name, description and dependencies.
const maxManifestSize = int64(kiwimod.MaxContentSize/3*4+4) + manifestOverhead

// manifestOverhead is the room left for everything but the content.
const manifestOverhead = 1 << 20
