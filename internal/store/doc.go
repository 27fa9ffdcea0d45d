// SPDX-License-Identifier: MPL-2.0

// Package store manages the set of installed modules on the local filesystem.
//
// Each module lives in a single CUE manifest, <root>/<name>.kiwimod.cue,
// holding its metadata and content. Installs write a temporary file in the
// same directory and rename it over the final path, so a reader never sees a
// partially written module.
package store
