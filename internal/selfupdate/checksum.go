// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrChecksumMismatch indicates a download does not hash to its published checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAssetNotFound indicates a release or checksums file lacks the expected asset.
	ErrAssetNotFound = errors.New("asset not found")
)

// ChecksumError reports the expected and actual SHA256 of a download.
// It wraps ErrChecksumMismatch.
type ChecksumError struct {
	Asset    string
	Expected string
	Got      string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s: expected %s, got %s", e.Asset, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ParseChecksums reads sha256sum output ("<hex>  <file>", optionally "<hex> *<file>")
// into a filename to lowercase-hash map. Malformed lines are skipped.
func ParseChecksums(r io.Reader) (map[string]string, error) {
	sums := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || !isSHA256Hex(fields[0]) {
			continue
		}
		name := strings.TrimPrefix(fields[1], "*")
		sums[name] = strings.ToLower(fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	if len(sums) == 0 {
		return nil, errors.New("no valid checksum entries found")
	}
	return sums, nil
}

// LookupChecksum returns the hash published for asset.
func LookupChecksum(sums map[string]string, asset string) (string, error) {
	h, ok := sums[asset]
	if !ok {
		return "", fmt.Errorf("%s: %w in checksums.txt", asset, ErrAssetNotFound)
	}
	return h, nil
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
