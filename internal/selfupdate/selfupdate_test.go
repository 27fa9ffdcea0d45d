// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func makeArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sha(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// fakeGitHub serves a releases listing plus asset downloads.
type fakeGitHub struct {
	releases []Release
	assets   map[string][]byte

	mu   sync.Mutex
	auth []string
}

func (f *fakeGitHub) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *fakeGitHub) start(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		if r.URL.Path == "/repos/kiwi-modules/kiwi/releases" {
			out := make([]Release, len(f.releases))
			for i, rel := range f.releases {
				rel.Assets = append([]Asset(nil), rel.Assets...)
				for j := range rel.Assets {
					rel.Assets[j].URL = "http://" + r.Host + "/download/" + rel.Assets[j].Name
				}
				out[i] = rel
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		if name, ok := strings.CutPrefix(r.URL.Path, "/download/"); ok {
			if body, ok := f.assets[name]; ok {
				_, _ = w.Write(body)
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestParseChecksums(t *testing.T) {
	t.Parallel()

	hash := strings.Repeat("ab", 32)
	input := strings.Join([]string{
		hash + "  kiwi_1.0.0_linux_amd64.tar.gz",
		strings.ToUpper(hash) + " *kiwi_1.0.0_darwin_arm64.tar.gz",
		"not-a-hash  file.txt",
		"",
		hash,
	}, "\n")

	sums, err := ParseChecksums(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseChecksums() error = %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(sums), sums)
	}
	if got, _ := LookupChecksum(sums, "kiwi_1.0.0_darwin_arm64.tar.gz"); got != hash {
		t.Errorf("hash = %q, want lowercase %q", got, hash)
	}
	if _, err := LookupChecksum(sums, "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("LookupChecksum(missing) error = %v, want ErrAssetNotFound", err)
	}

	if _, err := ParseChecksums(strings.NewReader("garbage\n")); err == nil {
		t.Error("expected an error for a file without entries")
	}
}

func TestDetectInstallMethod(t *testing.T) {
	gopath := t.TempDir()
	t.Setenv("GOPATH", gopath)
	t.Setenv("GOBIN", "")

	tests := []struct {
		path string
		want InstallMethod
	}{
		{path: "/opt/homebrew/bin/kiwi", want: InstallMethodHomebrew},
		{path: "/home/linuxbrew/.linuxbrew/bin/kiwi", want: InstallMethodHomebrew},
		{path: filepath.Join(gopath, "bin", "kiwi"), want: InstallMethodGoInstall},
		{path: filepath.Join(gopath, "bin", "sub", "kiwi"), want: InstallMethodManual},
		{path: "/usr/local/bin/kiwi", want: InstallMethodManual},
	}

	for _, tt := range tests {
		if got := DetectInstallMethod(tt.path); got != tt.want {
			t.Errorf("DetectInstallMethod(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	if !InstallMethodHomebrew.Managed() || InstallMethodManual.Managed() {
		t.Error("Managed() misclassifies install methods")
	}
	if !strings.Contains(InstallMethodHomebrew.Guidance("/x"), "brew upgrade kiwi") {
		t.Error("Homebrew guidance should mention brew upgrade")
	}
}

func TestLatestStable(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{releases: []Release{
		{TagName: "v1.2.0"},
		{TagName: "v2.0.0-rc.1", Prerelease: true},
		{TagName: "v1.10.0"},
		{TagName: "v3.0.0", Draft: true},
		{TagName: "nightly"},
	}}
	ts := gh.start(t)

	c := NewGitHubClient(WithBaseURL(ts.URL), WithToken("secret"))
	rel, err := c.LatestStable(context.Background())
	if err != nil {
		t.Fatalf("LatestStable() error = %v", err)
	}
	if rel.TagName != "v1.10.0" {
		t.Errorf("LatestStable() = %s, want v1.10.0", rel.TagName)
	}
	if auth := gh.authHeaders(); len(auth) != 1 || auth[0] != "Bearer secret" {
		t.Errorf("Authorization headers = %v", auth)
	}
}

func TestLatestStableRateLimited(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(ts.Close)

	_, err := NewGitHubClient(WithBaseURL(ts.URL)).LatestStable(context.Background())
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("LatestStable() error = %v, want *RateLimitError", err)
	}
}

func newRelease(t *testing.T, tag, binary string, tamper bool) (*fakeGitHub, string) {
	t.Helper()

	archiveName := ArchiveName(tag, "linux", "amd64")
	archive := makeArchive(t, map[string]string{
		"kiwi_dir/README.md": "docs",
		"kiwi_dir/kiwi":      binary,
	})
	sum := sha(archive)
	if tamper {
		sum = sha([]byte("something else"))
	}
	gh := &fakeGitHub{
		releases: []Release{{
			TagName: tag,
			Assets:  []Asset{{Name: archiveName}, {Name: "checksums.txt"}},
		}},
		assets: map[string][]byte{
			archiveName:     archive,
			"checksums.txt": []byte(fmt.Sprintf("%s  %s\n", sum, archiveName)),
		},
	}
	return gh, archiveName
}

func scratchBinary(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kiwi")
	if err := os.WriteFile(path, []byte("old binary"), 0o750); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUpdaterCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		current       string
		wantAvailable bool
		wantMessage   string
	}{
		{name: "upgrade available", current: "1.0.0", wantAvailable: true, wantMessage: "Upgrade available"},
		{name: "up to date", current: "v1.1.0", wantMessage: "up to date"},
		{name: "pre-release ahead", current: "v1.2.0-beta.1", wantMessage: "pre-release"},
		{name: "development build", current: "dev", wantMessage: "Development build"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gh, _ := newRelease(t, "v1.1.0", "new", false)
			ts := gh.start(t)

			u := NewUpdater(tt.current,
				WithGitHubClient(NewGitHubClient(WithBaseURL(ts.URL))),
				WithExecutablePath(scratchBinary(t)))

			check, err := u.Check(context.Background())
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if check.Available() != tt.wantAvailable {
				t.Errorf("Available() = %v, want %v", check.Available(), tt.wantAvailable)
			}
			if !strings.Contains(check.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", check.Message, tt.wantMessage)
			}
		})
	}
}

func TestUpdaterApply(t *testing.T) {
	t.Parallel()

	gh, _ := newRelease(t, "v1.1.0", "new binary", false)
	ts := gh.start(t)
	exe := scratchBinary(t)

	u := NewUpdater("v1.0.0",
		WithGitHubClient(NewGitHubClient(WithBaseURL(ts.URL))),
		WithExecutablePath(exe),
		WithPlatform("linux", "amd64"))

	check, err := u.Check(context.Background())
	if err != nil || !check.Available() {
		t.Fatalf("Check() = %+v, %v", check, err)
	}
	if err := u.Apply(context.Background(), check.Release); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	data, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new binary" {
		t.Errorf("binary content = %q, want new binary", data)
	}
	info, err := os.Stat(exe)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o750 {
		t.Errorf("mode = %v, want 0750", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(exe))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestUpdaterApplyChecksumMismatch(t *testing.T) {
	t.Parallel()

	gh, _ := newRelease(t, "v1.1.0", "evil binary", true)
	ts := gh.start(t)
	exe := scratchBinary(t)

	u := NewUpdater("v1.0.0",
		WithGitHubClient(NewGitHubClient(WithBaseURL(ts.URL))),
		WithExecutablePath(exe),
		WithPlatform("linux", "amd64"))

	check, err := u.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	err = u.Apply(context.Background(), check.Release)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Apply() error = %v, want ErrChecksumMismatch", err)
	}

	data, _ := os.ReadFile(exe)
	if string(data) != "old binary" {
		t.Errorf("binary was modified: %q", data)
	}
}

func TestUpdaterApplyMissingPlatform(t *testing.T) {
	t.Parallel()

	gh, _ := newRelease(t, "v1.1.0", "new", false)
	ts := gh.start(t)

	u := NewUpdater("v1.0.0",
		WithGitHubClient(NewGitHubClient(WithBaseURL(ts.URL))),
		WithExecutablePath(scratchBinary(t)),
		WithPlatform("plan9", "mips"))

	check, err := u.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := u.Apply(context.Background(), check.Release); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Apply() error = %v, want ErrAssetNotFound", err)
	}
}

type fakeChecker struct {
	check    *UpgradeCheck
	checkErr error
	applyErr error
	applied  bool
}

func (f *fakeChecker) Check(context.Context) (*UpgradeCheck, error) { return f.check, f.checkErr }

func (f *fakeChecker) Apply(context.Context, *Release) error {
	f.applied = f.applyErr == nil
	return f.applyErr
}

func TestControllerSelfUpdate(t *testing.T) {
	t.Parallel()

	available := &UpgradeCheck{CurrentVersion: "v1.0.0", LatestVersion: "v1.1.0", Release: &Release{TagName: "v1.1.0"}}

	tests := []struct {
		name        string
		checker     *fakeChecker
		confirm     func(string) bool
		checkOnly   bool
		wantApplied bool
	}{
		{name: "transport failure", checker: &fakeChecker{checkErr: errors.New("dial tcp: connection refused")}},
		{name: "up to date", checker: &fakeChecker{check: &UpgradeCheck{Message: "up to date"}}},
		{name: "applied", checker: &fakeChecker{check: available}, wantApplied: true},
		{name: "confirmed", checker: &fakeChecker{check: available}, confirm: func(string) bool { return true }, wantApplied: true},
		{name: "declined", checker: &fakeChecker{check: available}, confirm: func(string) bool { return false }},
		{name: "check only", checker: &fakeChecker{check: available}, checkOnly: true},
		{name: "apply failure", checker: &fakeChecker{check: available, applyErr: ErrChecksumMismatch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewController(tt.checker, nil)
			c.Confirm = tt.confirm
			c.CheckOnly = tt.checkOnly

			applied, msg := c.SelfUpdate(context.Background())
			if applied != tt.wantApplied {
				t.Errorf("SelfUpdate() applied = %v, want %v (%s)", applied, tt.wantApplied, msg)
			}
			if applied != tt.checker.applied {
				t.Errorf("reported %v but updater applied = %v", applied, tt.checker.applied)
			}
			if msg == "" && tt.name != "up to date" {
				t.Error("expected a message")
			}
		})
	}
}
