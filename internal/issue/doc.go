// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable, user-facing errors for the kiwi CLI.
//
// An ActionableError names the failed operation, the resource involved and
// suggestions for fixing it. It may also point at an Issue: a Markdown page,
// rendered with glamour, that explains a class of failure in more depth.
package issue
