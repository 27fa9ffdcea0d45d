// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

// ErrUsageConflict is returned for request shapes that cannot be served:
// "all" combined with explicit names, or no modules at all.
var ErrUsageConflict = errors.New("usage conflict")

// Request selects the modules a Fetch or Update applies to.
type Request struct {
	// Names lists modules explicitly, in the order given.
	Names []kiwimod.Name
	// All selects every catalog module (Fetch) or every installed module (Update).
	All bool
}

// ParseRequest builds a request from command-line arguments, where the
// single word "all" selects everything.
func ParseRequest(args []string) (Request, error) {
	var req Request
	for _, a := range args {
		if a == kiwimod.AllSentinel {
			req.All = true
			continue
		}
		req.Names = append(req.Names, kiwimod.Name(a))
	}
	return req, req.Validate()
}

// Validate rejects usage conflicts. It never touches the network.
func (r Request) Validate() error {
	switch {
	case r.All && len(r.Names) > 0:
		return fmt.Errorf("%w: %q cannot be combined with module names", ErrUsageConflict, kiwimod.AllSentinel)
	case !r.All && len(r.Names) == 0:
		return fmt.Errorf("%w: no modules requested", ErrUsageConflict)
	}
	for _, n := range r.Names {
		if n == kiwimod.AllSentinel {
			return fmt.Errorf("%w: %q cannot be combined with module names", ErrUsageConflict, kiwimod.AllSentinel)
		}
	}
	return nil
}
