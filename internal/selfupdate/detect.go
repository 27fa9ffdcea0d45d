// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// InstallMethodManual covers release downloads and install scripts; these
	// are upgraded in place.
	InstallMethodManual InstallMethod = "manual"
	// InstallMethodHomebrew is upgraded by brew.
	InstallMethodHomebrew InstallMethod = "homebrew"
	// InstallMethodGoInstall is upgraded by re-running go install.
	InstallMethodGoInstall InstallMethod = "go-install"
)

// InstallMethod identifies how the running binary was installed.
type InstallMethod string

// homebrewPrefixes lists the Cellar locations of macOS ARM, macOS Intel and Linuxbrew.
var homebrewPrefixes = []string{"/opt/homebrew/", "/usr/local/Cellar/", "/home/linuxbrew/.linuxbrew/"}

// Managed reports whether a package manager owns the binary.
func (m InstallMethod) Managed() bool {
	return m == InstallMethodHomebrew || m == InstallMethodGoInstall
}

// Guidance tells the user how to upgrade a managed install.
func (m InstallMethod) Guidance(execPath string) string {
	switch m {
	case InstallMethodHomebrew:
		return fmt.Sprintf("kiwi at %s is managed by Homebrew; run: brew upgrade kiwi", execPath)
	case InstallMethodGoInstall:
		return fmt.Sprintf("kiwi at %s was built with go install; run: go install github.com/kiwi-modules/kiwi@latest", execPath)
	default:
		return ""
	}
}

// DetectInstallMethod classifies execPath by its location.
func DetectInstallMethod(execPath string) InstallMethod {
	slashed := filepath.ToSlash(execPath)
	for _, prefix := range homebrewPrefixes {
		if strings.Contains(slashed, prefix) {
			return InstallMethodHomebrew
		}
	}
	if inGoBin(execPath) {
		return InstallMethodGoInstall
	}
	return InstallMethodManual
}

// inGoBin reports whether execPath sits directly in $GOBIN or $GOPATH/bin
// (default ~/go/bin).
func inGoBin(execPath string) bool {
	dir := filepath.Clean(filepath.Dir(execPath))

	if gobin := os.Getenv("GOBIN"); gobin != "" && filepath.Clean(gobin) == dir {
		return true
	}
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return false
		}
		gopath = filepath.Join(home, "go")
	}
	for _, p := range filepath.SplitList(gopath) {
		if filepath.Clean(filepath.Join(p, "bin")) == dir {
			return true
		}
	}
	return false
}
