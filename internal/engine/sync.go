// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/kiwi-modules/kiwi/internal/resolver"
	"github.com/kiwi-modules/kiwi/internal/store"
	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

// Fetch installs the requested modules that are not yet installed, together
// with their missing dependencies. Modules installed before the call are left
// alone and reported as unchanged, or as updatable when update detection says so.
//
// An invalid request returns ErrUsageConflict before the registry is
// contacted. A registry whose catalog cannot be read fails the whole call.
func (e *Engine) Fetch(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	catalog, err := e.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}

	installed, err := e.installedSet()
	if err != nil {
		return nil, err
	}
	atStart := make(map[kiwimod.Name]bool, len(installed))
	for n := range installed {
		atStart[n] = true
	}

	requested := catalog.Names()
	if !req.All {
		requested = kiwimod.Dedupe(req.Names)
	}

	res := newResult()
	failed := make(map[kiwimod.Name]error)
	for _, name := range e.dependencyOrder(requested, catalog) {
		if err := ctx.Err(); err != nil {
			res.fail(name, err)
			continue
		}
		if err := name.Validate(); err != nil {
			res.fail(name, err)
			continue
		}

		switch {
		case atStart[name]:
			if e.isUpdatable(name, catalog) {
				res.Updatable = append(res.Updatable, name)
			} else {
				res.Unchanged = append(res.Unchanged, name)
			}
			continue
		case installed[name] && res.promote(name):
			// Installed during this call on behalf of an earlier module.
			continue
		}

		if err := e.installWithDependencies(ctx, name, installed, catalog, failed, res); err != nil {
			e.logger.Warn("fetch failed", "module", name, "error", err)
			failed[name] = err
			res.fail(name, err)
			continue
		}
		res.Fetched = append(res.Fetched, name)
		e.logger.Info("fetched module", "module", name)
	}

	return res, nil
}

// Update re-downloads and re-installs each requested module whether or not
// its content changed. Missing dependencies are fetched first; installed
// dependencies are not touched. Requesting a module that is not installed is
// a per-module failure.
func (e *Engine) Update(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	installed, err := e.installedSet()
	if err != nil {
		return nil, err
	}
	atStart := make(map[kiwimod.Name]bool, len(installed))
	for n := range installed {
		atStart[n] = true
	}

	var requested []kiwimod.Name
	if req.All {
		requested, err = e.store.List()
		if err != nil {
			return nil, fmt.Errorf("listing installed modules: %w", err)
		}
	} else {
		requested = kiwimod.Dedupe(req.Names)
	}

	res := newResult()
	if len(requested) == 0 {
		return res, nil
	}

	catalog, err := e.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}

	failed := make(map[kiwimod.Name]error)
	for _, name := range e.dependencyOrder(requested, catalog) {
		if err := ctx.Err(); err != nil {
			res.fail(name, err)
			continue
		}
		if err := name.Validate(); err != nil {
			res.fail(name, err)
			continue
		}
		if !atStart[name] {
			res.fail(name, &store.NotInstalledError{Name: name})
			continue
		}

		if err := e.installWithDependencies(ctx, name, installed, catalog, failed, res); err != nil {
			e.logger.Warn("update failed", "module", name, "error", err)
			failed[name] = err
			res.fail(name, err)
			continue
		}
		res.Updated = append(res.Updated, name)
		e.logger.Info("updated module", "module", name)
	}

	return res, nil
}

// installWithDependencies resolves name against the catalog, installs each
// missing dependency, then downloads and installs name itself regardless of
// whether it is already present. installed is updated as modules land.
// A module in failed already failed during this pass and is not downloaded
// again; its dependents fail with the recorded cause.
func (e *Engine) installWithDependencies(ctx context.Context, name kiwimod.Name, installed map[kiwimod.Name]bool, catalog *kiwimod.Catalog, failed map[kiwimod.Name]error, res *Result) error {
	isInstalled := func(n kiwimod.Name) bool { return n != name && installed[n] }

	plan, err := resolver.Resolve([]kiwimod.Name{name}, isInstalled, catalog)
	if err != nil {
		return err
	}
	e.logger.Debug("resolved install plan", "module", name, "plan", plan)

	for _, n := range plan {
		if err, ok := failed[n]; ok {
			if n != name {
				return fmt.Errorf("installing dependency %s: %w", n, err)
			}
			return err
		}
		desc, _ := catalog.Lookup(n)
		if err := e.install(ctx, desc); err != nil {
			if n != name {
				failed[n] = err
				return fmt.Errorf("installing dependency %s: %w", n, err)
			}
			return err
		}
		installed[n] = true
		if n != name {
			res.addDependency(n)
			e.logger.Info("fetched dependency", "module", n, "for", name)
		}
	}
	return nil
}

func (e *Engine) install(ctx context.Context, desc kiwimod.Descriptor) error {
	full, err := e.registry.DownloadVerified(ctx, desc)
	if err != nil {
		return err
	}
	if err := e.store.Install(full); err != nil {
		return fmt.Errorf("installing %s: %w", desc.Name, err)
	}
	return nil
}

// isUpdatable applies the configured update detection to an installed module.
func (e *Engine) isUpdatable(name kiwimod.Name, catalog *kiwimod.Catalog) bool {
	remote, ok := catalog.Lookup(name)
	if !ok {
		return false
	}

	switch e.detect {
	case DetectPresence:
		return true
	case DetectDigest:
		if remote.Digest == "" {
			return false
		}
		local, err := e.store.Descriptor(name)
		if err != nil {
			e.logger.Debug("cannot read installed module for update check", "module", name, "error", err)
			return false
		}
		return !kiwimod.SameDigest(local.Digest, remote.Digest)
	default:
		return false
	}
}
