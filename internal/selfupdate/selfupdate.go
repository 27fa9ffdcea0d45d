// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"
)

// maxBinaryBytes bounds the extracted binary (500 MB) against decompression bombs.
const maxBinaryBytes = 500 << 20

type (
	// UpgradeCheck is the outcome of comparing the running version with the
	// latest stable release.
	UpgradeCheck struct {
		CurrentVersion string
		LatestVersion  string
		// Release is set only when an upgrade can be applied in place.
		Release       *Release
		InstallMethod InstallMethod
		Message       string
	}

	// Updater checks for and applies upgrades of the running binary.
	Updater struct {
		client         *GitHubClient
		currentVersion string
		execPath       func() (string, error)
		goos, goarch   string
	}

	// UpdaterOption configures an Updater.
	UpdaterOption func(*Updater)
)

// Available reports whether Apply has something to install.
func (c *UpgradeCheck) Available() bool { return c != nil && c.Release != nil }

// WithGitHubClient sets the releases client.
func WithGitHubClient(c *GitHubClient) UpdaterOption {
	return func(u *Updater) { u.client = c }
}

// WithExecutablePath replaces os.Executable, so tests can upgrade a scratch file.
func WithExecutablePath(path string) UpdaterOption {
	return func(u *Updater) {
		u.execPath = func() (string, error) { return path, nil }
	}
}

// WithPlatform overrides the GOOS/GOARCH used to pick the release archive.
func WithPlatform(goos, goarch string) UpdaterOption {
	return func(u *Updater) { u.goos, u.goarch = goos, goarch }
}

// NewUpdater returns an updater for a binary at currentVersion.
func NewUpdater(currentVersion string, opts ...UpdaterOption) *Updater {
	u := &Updater{
		currentVersion: currentVersion,
		execPath:       resolveExecutable,
		goos:           runtime.GOOS,
		goarch:         runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = NewGitHubClient()
	}
	return u
}

// Check compares the running version with the latest stable release.
// Managed installs and development builds get a message and no release.
func (u *Updater) Check(ctx context.Context) (*UpgradeCheck, error) {
	execPath, err := u.execPath()
	if err != nil {
		return nil, err
	}
	method := DetectInstallMethod(execPath)
	check := &UpgradeCheck{CurrentVersion: u.currentVersion, InstallMethod: method}

	if method.Managed() {
		check.Message = method.Guidance(execPath)
		return check, nil
	}

	current := canonicalTag(u.currentVersion)
	if !semver.IsValid(current) {
		check.Message = fmt.Sprintf("Development build (%s); self-update is disabled.", u.currentVersion)
		return check, nil
	}

	release, err := u.client.LatestStable(ctx)
	if err != nil {
		return nil, err
	}
	check.LatestVersion = release.TagName
	latest := canonicalTag(release.TagName)

	switch {
	case semver.Compare(current, latest) >= 0 && semver.Prerelease(current) != "":
		check.Message = fmt.Sprintf("Running pre-release %s, ahead of %s.", u.currentVersion, release.TagName)
	case semver.Compare(current, latest) >= 0:
		check.Message = fmt.Sprintf("kiwi %s is up to date.", u.currentVersion)
	default:
		check.Release = release
		check.Message = fmt.Sprintf("Upgrade available: %s -> %s", u.currentVersion, release.TagName)
	}
	return check, nil
}

// ArchiveName is the release asset holding the binary for goos/goarch,
// e.g. kiwi_1.4.0_linux_amd64.tar.gz.
func ArchiveName(tag, goos, goarch string) string {
	return fmt.Sprintf("kiwi_%s_%s_%s.tar.gz", strings.TrimPrefix(tag, "v"), goos, goarch)
}

// Apply downloads the release archive, verifies it against checksums.txt,
// extracts the kiwi binary and renames it over the running executable. All
// temporary files live next to the executable so the rename stays on one
// filesystem.
func (u *Updater) Apply(ctx context.Context, release *Release) error {
	if release == nil {
		return errors.New("release must not be nil")
	}
	execPath, err := u.execPath()
	if err != nil {
		return err
	}
	if u.goos == "windows" {
		return errors.New("in-place upgrade is not supported on Windows; download the release manually")
	}

	archiveName := ArchiveName(release.TagName, u.goos, u.goarch)
	archive, err := release.FindAsset(archiveName)
	if err != nil {
		return err
	}
	sumsAsset, err := release.FindAsset("checksums.txt")
	if err != nil {
		return err
	}

	sumsBody, err := u.client.Download(ctx, sumsAsset)
	if err != nil {
		return err
	}
	sums, err := ParseChecksums(io.LimitReader(sumsBody, maxJSONResponseBytes))
	_ = sumsBody.Close()
	if err != nil {
		return err
	}
	want, err := LookupChecksum(sums, archiveName)
	if err != nil {
		return err
	}

	dir := filepath.Dir(execPath)
	archivePath, got, err := u.downloadHashed(ctx, archive, dir)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archivePath) }()

	if got != want {
		return &ChecksumError{Asset: archiveName, Expected: want, Got: got}
	}

	binPath, err := extractBinary(archivePath, dir)
	if err != nil {
		return err
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(binPath)
		}
	}()

	info, err := os.Stat(execPath)
	if err != nil {
		return fmt.Errorf("reading current binary mode: %w", err)
	}
	if err := os.Chmod(binPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting binary permissions: %w", err)
	}
	if err := os.Rename(binPath, execPath); err != nil {
		return fmt.Errorf("replacing binary: %w", err)
	}
	renamed = true
	return nil
}

// downloadHashed saves asset into a temp file in dir and returns its path and SHA256.
func (u *Updater) downloadHashed(ctx context.Context, asset Asset, dir string) (_ string, _ string, err error) {
	body, err := u.client.Download(ctx, asset)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	tmp, err := os.CreateTemp(dir, ".kiwi-download-*")
	if err != nil {
		return "", "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		return "", "", fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	return tmp.Name(), hex.EncodeToString(h.Sum(nil)), nil
}

// extractBinary copies the "kiwi" entry of a tar.gz archive, at any depth,
// into a temp file in dir.
func extractBinary(archivePath, dir string) (_ string, err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("reading archive: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			return "", fmt.Errorf("kiwi binary not found in %s: %w", filepath.Base(archivePath), ErrAssetNotFound)
		}
		if nextErr != nil {
			return "", fmt.Errorf("reading archive: %w", nextErr)
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Base(hdr.Name) != "kiwi" {
			continue
		}

		tmp, err := os.CreateTemp(dir, ".kiwi-upgrade-*")
		if err != nil {
			return "", fmt.Errorf("creating temp file: %w", err)
		}
		_, copyErr := io.Copy(tmp, io.LimitReader(tr, maxBinaryBytes))
		closeErr := tmp.Close()
		if err := errors.Join(copyErr, closeErr); err != nil {
			_ = os.Remove(tmp.Name())
			return "", fmt.Errorf("extracting binary: %w", err)
		}
		return tmp.Name(), nil
	}
}

func resolveExecutable() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}
	return resolved, nil
}

// canonicalTag adds the "v" prefix semver expects.
func canonicalTag(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
