// SPDX-License-Identifier: MPL-2.0

// Package engine reconciles the installed-module set with a remote registry.
//
// The three operations, List, Fetch and Update, are synchronous and process
// modules one at a time in dependency order. Per-module failures are collected
// in the Result rather than returned; only an invalid request or a registry
// that cannot be reached at all produce an error.
package engine
