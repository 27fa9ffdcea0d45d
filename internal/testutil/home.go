// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// kiwiEnv lists the variables that override configuration at load time.
var kiwiEnv = []string{"KIWI_REGISTRY_URL", "KIWI_MODULES_PATH"}

// SetHomeDir points the platform home variable at dir for the duration of
// the test. It cannot be combined with t.Parallel.
//
// Platform handling:
//   - Windows: sets USERPROFILE
//   - Linux/macOS: sets HOME
func SetHomeDir(t testing.TB, dir string) {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		t.Setenv("USERPROFILE", dir)
	default:
		t.Setenv("HOME", dir)
	}
}

// IsolateUserDirs gives the test a fresh home directory, points
// XDG_CONFIG_HOME inside it and clears kiwi's override variables, so a
// developer's real configuration never leaks into a test. It returns the
// new home directory.
func IsolateUserDirs(t testing.TB) string {
	t.Helper()

	home := t.TempDir()
	SetHomeDir(t, home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range kiwiEnv {
		t.Setenv(key, "")
	}
	return home
}
