// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// DefaultOwner and DefaultRepo name the repository releases are read from.
	DefaultOwner = "kiwi-modules"
	DefaultRepo  = "kiwi"

	defaultAPIBase = "https://api.github.com"

	// maxJSONResponseBytes bounds the releases listing (10 MB).
	maxJSONResponseBytes = 10 << 20
)

type (
	// RateLimitError is returned when the GitHub API quota is exhausted.
	RateLimitError struct {
		ResetAt time.Time
	}

	// Release is a published GitHub release.
	Release struct {
		TagName    string  `json:"tag_name"`
		Prerelease bool    `json:"prerelease"`
		Draft      bool    `json:"draft"`
		HTMLURL    string  `json:"html_url"`
		Assets     []Asset `json:"assets"`
	}

	// Asset is one downloadable file attached to a release.
	Asset struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
		Size int64  `json:"size"`
	}

	// GitHubClient reads releases of a single repository.
	GitHubClient struct {
		httpClient *http.Client
		baseURL    string
		owner      string
		repo       string
		token      string
		userAgent  string
	}

	// ClientOption configures a GitHubClient.
	ClientOption func(*GitHubClient)
)

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (resets at %s)", e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets the HTTP client used for API calls and downloads.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) { g.httpClient = c }
}

// WithBaseURL overrides the API base URL, for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) { g.baseURL = strings.TrimRight(base, "/") }
}

// WithToken authenticates API requests, raising the rate limit.
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) { g.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) { g.userAgent = ua }
}

// WithRepo overrides the repository owner and name. Empty values keep the defaults.
func WithRepo(owner, repo string) ClientOption {
	return func(g *GitHubClient) {
		if owner != "" {
			g.owner = owner
		}
		if repo != "" {
			g.repo = repo
		}
	}
}

// NewGitHubClient returns a client for kiwi-modules/kiwi on api.github.com.
func NewGitHubClient(opts ...ClientOption) *GitHubClient {
	c := &GitHubClient{
		httpClient: &http.Client{Timeout: time.Minute},
		baseURL:    defaultAPIBase,
		owner:      DefaultOwner,
		repo:       DefaultRepo,
		userAgent:  "kiwi/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestStable returns the highest-versioned release that is neither a draft
// nor a prerelease and carries a valid semver tag.
func (c *GitHubClient) LatestStable(ctx context.Context) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=30", c.baseURL, c.owner, c.repo)

	resp, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	var releases []Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&releases); err != nil {
		return nil, fmt.Errorf("decoding releases: %w", err)
	}

	releases = slices.DeleteFunc(releases, func(r Release) bool {
		return r.Draft || r.Prerelease || !semver.IsValid(canonicalTag(r.TagName))
	})
	if len(releases) == 0 {
		return nil, fmt.Errorf("no stable releases found for %s/%s", c.owner, c.repo)
	}

	latest := slices.MaxFunc(releases, func(a, b Release) int {
		return semver.Compare(canonicalTag(a.TagName), canonicalTag(b.TagName))
	})
	return &latest, nil
}

// Download streams the asset body. The caller closes it.
func (c *GitHubClient) Download(ctx context.Context, asset Asset) (io.ReadCloser, error) {
	resp, err := c.get(ctx, asset.URL, false)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	return resp.Body, nil
}

func (c *GitHubClient) get(ctx context.Context, endpoint string, api bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
	}
	// The token only goes to the API host, never to redirect targets or CDNs.
	if c.token != "" && sameHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		_ = resp.Body.Close()
		reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // best-effort diagnostics
		return nil, &RateLimitError{ResetAt: time.Unix(reset, 0)}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, redact(req.URL))
	}
	return resp, nil
}

// FindAsset returns the asset called name.
func (r *Release) FindAsset(name string) (Asset, error) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("release %s has no asset %q: %w", r.TagName, name, ErrAssetNotFound)
}

func sameHost(u *url.URL, base string) bool {
	b, err := url.Parse(base)
	return err == nil && strings.EqualFold(u.Host, b.Host)
}

// redact drops query and fragment, which may carry signed tokens.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}
