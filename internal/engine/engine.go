// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/kiwi-modules/kiwi/internal/dag"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

// Update detection modes for Fetch on modules that are already installed.
const (
	// DetectOff reports installed modules as unchanged.
	DetectOff UpdateDetection = "off"
	// DetectPresence reports every installed module the registry still lists as updatable.
	DetectPresence UpdateDetection = "presence"
	// DetectDigest reports installed modules whose content digest differs from the catalog's.
	DetectDigest UpdateDetection = "digest"
)

type (
	// UpdateDetection selects how Fetch classifies already-installed modules.
	UpdateDetection string

	// Registry is the remote side of a sync.
	Registry interface {
		List(ctx context.Context) (*kiwimod.Catalog, error)
		// DownloadVerified returns desc with its content, checked against
		// desc.Digest when one is set.
		DownloadVerified(ctx context.Context, desc kiwimod.Descriptor) (kiwimod.Descriptor, error)
	}

	// Store is the local side of a sync.
	Store interface {
		List() ([]kiwimod.Name, error)
		Descriptor(name kiwimod.Name) (kiwimod.Descriptor, error)
		Install(desc kiwimod.Descriptor) error
	}

	// Engine runs List, Fetch and Update against a registry and a store.
	Engine struct {
		registry Registry
		store    Store
		logger   *log.Logger
		detect   UpdateDetection
	}

	// Option configures an Engine.
	Option func(*Engine)
)

// Validate reports whether d is a known mode.
func (d UpdateDetection) Validate() error {
	switch d {
	case DetectOff, DetectPresence, DetectDigest:
		return nil
	default:
		return fmt.Errorf("invalid update detection mode %q (want off, presence or digest)", string(d))
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithUpdateDetection sets how Fetch classifies installed modules. Unknown
// modes are ignored.
func WithUpdateDetection(d UpdateDetection) Option {
	return func(e *Engine) {
		if d.Validate() == nil {
			e.detect = d
		}
	}
}

// New returns an engine syncing store against registry.
func New(registry Registry, store Store, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		logger:   log.New(io.Discard),
		detect:   DetectOff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// installedSet snapshots the store. Every operation re-reads it rather than caching.
func (e *Engine) installedSet() (map[kiwimod.Name]bool, error) {
	names, err := e.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing installed modules: %w", err)
	}
	set := make(map[kiwimod.Name]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

// dependencyOrder sorts names so that each comes after any other member it
// transitively depends on through the catalog. A cyclic catalog leaves the
// order unchanged; the resolver reports the cycle per module.
func (e *Engine) dependencyOrder(names []kiwimod.Name, catalog *kiwimod.Catalog) []kiwimod.Name {
	g := dag.FromDependencies(names, func(n kiwimod.Name) []kiwimod.Name {
		desc, _ := catalog.Lookup(n)
		return desc.Dependencies
	})
	order, err := g.SortSubset(names)
	if err != nil {
		e.logger.Debug("catalog has a dependency cycle, keeping request order", "error", err)
		return names
	}
	return order
}
