// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"slices"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

// Module statuses reported by List.
const (
	// StatusInstalledKnown marks a module installed locally and listed by the registry.
	StatusInstalledKnown Status = "installed-known"
	// StatusInstalledUnknown marks a module installed locally that the registry
	// does not list, or whose registry could not be reached.
	StatusInstalledUnknown Status = "installed-unknown"
	// StatusAvailable marks a registry module that is not installed.
	StatusAvailable Status = "available"
)

type (
	// Status classifies a module in a listing.
	Status string

	// ListEntry is one row of a listing.
	ListEntry struct {
		Name        kiwimod.Name `json:"name" yaml:"name" toml:"name"`
		Status      Status       `json:"status" yaml:"status" toml:"status"`
		Description string       `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	}

	// ListResult is the outcome of List.
	ListResult struct {
		Modules []ListEntry `json:"modules" yaml:"modules" toml:"modules"`
		// Warnings carry non-fatal problems, such as an unreachable registry.
		Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty"`
	}

	// Failure records why a module could not be fetched or updated.
	Failure struct {
		Module kiwimod.Name `json:"module" yaml:"module" toml:"module"`
		Reason string       `json:"reason" yaml:"reason" toml:"reason"`
		Err    error        `json:"-" yaml:"-" toml:"-"`
	}

	// Result partitions a request. Every requested module appears in exactly
	// one of Fetched, Updated, Updatable, Failed or Unchanged. Modules that
	// were installed only as dependencies appear in both Fetched and
	// Dependencies.
	Result struct {
		Fetched      []kiwimod.Name `json:"fetched" yaml:"fetched" toml:"fetched"`
		Updated      []kiwimod.Name `json:"updated" yaml:"updated" toml:"updated"`
		Updatable    []kiwimod.Name `json:"updatable" yaml:"updatable" toml:"updatable"`
		Failed       []Failure      `json:"failed" yaml:"failed" toml:"failed"`
		Unchanged    []kiwimod.Name `json:"unchanged" yaml:"unchanged" toml:"unchanged"`
		Dependencies []kiwimod.Name `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
	}
)

// Error implements the error interface.
func (f Failure) Error() string { return string(f.Module) + ": " + f.Reason }

// Unwrap returns the underlying cause.
func (f Failure) Unwrap() error { return f.Err }

func newResult() *Result {
	return &Result{
		Fetched:      []kiwimod.Name{},
		Updated:      []kiwimod.Name{},
		Updatable:    []kiwimod.Name{},
		Failed:       []Failure{},
		Unchanged:    []kiwimod.Name{},
		Dependencies: []kiwimod.Name{},
	}
}

// FailedNames returns the names of failed modules in order.
func (r *Result) FailedNames() []kiwimod.Name {
	out := make([]kiwimod.Name, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Module)
	}
	return out
}

// HasFailures reports whether any module failed.
func (r *Result) HasFailures() bool { return len(r.Failed) > 0 }

// Requested returns the modules the request covered, grouped by outcome.
func (r *Result) Requested() []kiwimod.Name {
	var out []kiwimod.Name
	for _, n := range r.Fetched {
		if !slices.Contains(r.Dependencies, n) {
			out = append(out, n)
		}
	}
	out = append(out, r.Updated...)
	out = append(out, r.Updatable...)
	out = append(out, r.FailedNames()...)
	return append(out, r.Unchanged...)
}

func (r *Result) fail(name kiwimod.Name, err error) {
	r.Failed = append(r.Failed, Failure{Module: name, Reason: err.Error(), Err: err})
}

func (r *Result) addDependency(name kiwimod.Name) {
	r.Fetched = append(r.Fetched, name)
	r.Dependencies = append(r.Dependencies, name)
}

// promote turns a module installed earlier as a dependency into a requested
// fetch. It reports whether name had been installed that way.
func (r *Result) promote(name kiwimod.Name) bool {
	i := slices.Index(r.Dependencies, name)
	if i < 0 {
		return false
	}
	r.Dependencies = slices.Delete(r.Dependencies, i, i+1)
	return true
}
