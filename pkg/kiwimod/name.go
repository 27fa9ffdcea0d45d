// SPDX-License-Identifier: MPL-2.0

package kiwimod

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxNameLength bounds module names so they stay usable as file names.
const MaxNameLength = 128

// AllSentinel is the reserved argument meaning "every module" in get/update requests.
const AllSentinel = "all"

// ErrInvalidName is the sentinel wrapped by InvalidNameError.
var ErrInvalidName = errors.New("invalid module name")

type (
	// Name uniquely identifies a module. Names are case-sensitive.
	Name string

	// InvalidNameError describes why a Name failed validation.
	// It wraps ErrInvalidName for errors.Is() compatibility.
	InvalidNameError struct {
		Value  Name
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: %s", string(e.Value), e.Reason)
}

// Unwrap returns ErrInvalidName.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// String returns the name as a plain string.
func (n Name) String() string { return string(n) }

// Validate reports whether n can be used as a module name. Names must be
// non-empty, free of whitespace and path separators, must not start with a
// dot and must not collide with the "all" sentinel.
func (n Name) Validate() error {
	s := string(n)
	switch {
	case s == "":
		return &InvalidNameError{Value: n, Reason: "name is empty"}
	case len(s) > MaxNameLength:
		return &InvalidNameError{Value: n, Reason: fmt.Sprintf("longer than %d characters", MaxNameLength)}
	case s == AllSentinel:
		return &InvalidNameError{Value: n, Reason: "\"all\" is reserved"}
	case strings.HasPrefix(s, "."):
		return &InvalidNameError{Value: n, Reason: "must not start with '.'"}
	case strings.ContainsAny(s, `/\`):
		return &InvalidNameError{Value: n, Reason: "must not contain path separators"}
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return &InvalidNameError{Value: n, Reason: "must not contain whitespace or control characters"}
		}
	}
	return nil
}

// Names converts plain strings to Names without validating them.
func Names(values ...string) []Name {
	out := make([]Name, 0, len(values))
	for _, v := range values {
		out = append(out, Name(v))
	}
	return out
}

// Strings converts Names back to plain strings.
func Strings(names []Name) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, string(n))
	}
	return out
}

// Dedupe returns names with later duplicates removed, preserving first-seen order.
func Dedupe(names []Name) []Name {
	seen := make(map[Name]bool, len(names))
	out := make([]Name, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
