// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

// List classifies the union of installed and registry modules. Registry
// modules come first in catalog order, followed by installed modules the
// registry does not list, sorted by name. A registry failure degrades to a
// local-only listing with a warning.
func (e *Engine) List(ctx context.Context) (*ListResult, error) {
	installed, err := e.installedSet()
	if err != nil {
		return nil, err
	}

	res := &ListResult{Modules: []ListEntry{}}

	catalog, err := e.registry.List(ctx)
	if err != nil {
		e.logger.Warn("registry unavailable, listing local modules only", "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("registry unavailable, showing installed modules only: %v", err))
		catalog = nil
	}

	for _, desc := range catalog.Modules() {
		entry := ListEntry{Name: desc.Name, Status: StatusAvailable, Description: desc.Description}
		if installed[desc.Name] {
			entry.Status = StatusInstalledKnown
			if entry.Description == "" {
				entry.Description = e.localDescription(desc.Name, res)
			}
		}
		res.Modules = append(res.Modules, entry)
	}

	local := make([]kiwimod.Name, 0, len(installed))
	for name := range installed {
		if !catalog.Has(name) {
			local = append(local, name)
		}
	}
	slices.Sort(local)
	for _, name := range local {
		res.Modules = append(res.Modules, ListEntry{
			Name:        name,
			Status:      StatusInstalledUnknown,
			Description: e.localDescription(name, res),
		})
	}

	return res, nil
}

func (e *Engine) localDescription(name kiwimod.Name, res *ListResult) string {
	desc, err := e.store.Descriptor(name)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("reading installed module %s: %v", name, err))
		return ""
	}
	return desc.Description
}
