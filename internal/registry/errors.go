// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

var (
	// ErrUnreachableRegistry covers transport failures, timeouts, unexpected
	// status codes and undecodable responses.
	ErrUnreachableRegistry = errors.New("registry unreachable")

	// ErrNotFound is returned when the registry answers 404 for a module.
	ErrNotFound = errors.New("module not found in registry")

	// ErrDigestMismatch is returned when downloaded content does not hash to
	// the digest the catalog advertised.
	ErrDigestMismatch = errors.New("module content digest mismatch")

	// ErrNoServerside is returned when the registry does not run server-side
	// module logic.
	ErrNoServerside = errors.New("registry has no server-side logic")

	// ErrServersideFailed is returned when a module's server-side logic ran
	// and failed. The registry's message follows it.
	ErrServersideFailed = errors.New("server-side call failed")
)

// Error records the failed operation and, when known, the module involved.
type Error struct {
	Op     string
	Module kiwimod.Name
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registry %s %s: %v", e.Op, e.Module, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// IsUnreachable reports whether err means the registry could not be used at all.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachableRegistry)
}

// unreachable wraps cause so that it matches both ErrUnreachableRegistry and cause.
func unreachable(cause error) error {
	return fmt.Errorf("%w: %w", ErrUnreachableRegistry, cause)
}
