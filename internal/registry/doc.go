// SPDX-License-Identifier: MPL-2.0

// Package registry talks to a remote module registry over HTTP.
//
// The wire format is small:
//
//	GET {base}/modules                 JSON list of module descriptors
//	GET {base}/modules/{name}          JSON descriptor of one module
//	GET {base}/modules/{name}/content  raw module content
//	GET {base}/healthz                 liveness probe
//
// Client consumes it; Server produces it from any Source, which is how a
// local store can be published as a registry.
package registry
