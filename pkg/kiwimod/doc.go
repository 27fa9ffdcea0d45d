// SPDX-License-Identifier: MPL-2.0

// Package kiwimod defines the data model shared by every kiwi component.
//
// A module is a named, independently distributable script with an ordered list
// of dependencies on other modules. The types here carry no behavior beyond
// validation and lookup:
//   - [Name]: the primary key of a module across the registry and the local store
//   - [Descriptor]: module metadata plus its opaque content blob
//   - [Catalog]: an ordered snapshot of descriptors advertised by a registry
//
// Content is never parsed by the resolution core. Its SHA256 digest (see
// [Digest]) is used to detect whether an installed module differs from the
// registry copy.
package kiwimod
