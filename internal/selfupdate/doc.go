// SPDX-License-Identifier: MPL-2.0

// Package selfupdate replaces the running kiwi binary with the latest stable
// GitHub release.
//
//   - github.go: minimal GitHub Releases client (list, download)
//   - checksum.go: checksums.txt parsing and SHA256 verification
//   - detect.go: install method detection (package-managed installs are not touched)
//   - selfupdate.go: Updater, the check/apply flow with an atomic rename
//   - controller.go: Controller, the never-fails facade used by the CLI
package selfupdate
