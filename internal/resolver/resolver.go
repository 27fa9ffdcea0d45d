// SPDX-License-Identifier: MPL-2.0

// Package resolver computes the modules that must be installed, in order, to
// satisfy a request.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

var (
	// ErrDependencyCycle is returned when a module transitively depends on itself.
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrUnknownDependency is returned when a declared dependency is not in the catalog.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrModuleNotFound is returned when a requested module is not in the catalog.
	ErrModuleNotFound = errors.New("module not found in catalog")
)

type (
	// CycleError names the dependency path that loops back on itself,
	// e.g. a -> b -> a.
	CycleError struct {
		Path []kiwimod.Name
	}

	// UnknownDependencyError attributes a missing dependency to the module declaring it.
	UnknownDependencyError struct {
		Module     kiwimod.Name
		Dependency kiwimod.Name
	}

	// NotFoundError names a requested module the catalog does not advertise.
	NotFoundError struct {
		Module kiwimod.Name
	}

	// Installed reports whether a module is already present locally.
	Installed func(kiwimod.Name) bool
)

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(kiwimod.Strings(e.Path), " -> ")
}

// Unwrap returns ErrDependencyCycle.
func (e *CycleError) Unwrap() error { return ErrDependencyCycle }

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("module %q depends on %q, which is not in the registry", e.Module, e.Dependency)
}

// Unwrap returns ErrUnknownDependency.
func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module %q not found in the registry", e.Module)
}

// Unwrap returns ErrModuleNotFound.
func (e *NotFoundError) Unwrap() error { return ErrModuleNotFound }

// InstalledSet adapts a list of names to Installed.
func InstalledSet(names []kiwimod.Name) Installed {
	set := make(map[kiwimod.Name]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(n kiwimod.Name) bool { return set[n] }
}

// Resolve returns the modules from requested and their transitive
// dependencies that are not yet installed, each appearing exactly once and
// after every module it depends on. Installed modules are skipped together
// with their own dependencies. Requested modules that are already installed
// contribute nothing.
//
// It uses a dual-map pattern for traversal control:
//   - visited: modules already emitted or skipped, never processed twice.
//   - inProgress: modules on the current DFS path; meeting one again is a cycle.
func Resolve(requested []kiwimod.Name, installed Installed, catalog *kiwimod.Catalog) ([]kiwimod.Name, error) {
	if installed == nil {
		installed = func(kiwimod.Name) bool { return false }
	}

	var (
		order      []kiwimod.Name
		visited    = make(map[kiwimod.Name]bool)
		inProgress = make(map[kiwimod.Name]bool)
		path       []kiwimod.Name
	)

	var visit func(name, parent kiwimod.Name) error
	visit = func(name, parent kiwimod.Name) error {
		if inProgress[name] {
			return &CycleError{Path: cyclePath(path, name)}
		}
		if visited[name] {
			return nil
		}
		if installed(name) {
			visited[name] = true
			return nil
		}

		desc, ok := catalog.Lookup(name)
		if !ok {
			if parent == "" {
				return &NotFoundError{Module: name}
			}
			return &UnknownDependencyError{Module: parent, Dependency: name}
		}

		inProgress[name] = true
		path = append(path, name)
		for _, dep := range desc.Dependencies {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(inProgress, name)

		visited[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range requested {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// cyclePath returns the tail of path starting at the first occurrence of
// repeat, closed with repeat itself.
func cyclePath(path []kiwimod.Name, repeat kiwimod.Name) []kiwimod.Name {
	start := 0
	for i, n := range path {
		if n == repeat {
			start = i
			break
		}
	}
	out := append([]kiwimod.Name(nil), path[start:]...)
	return append(out, repeat)
}
