// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

const (
	// DefaultTimeout bounds every request when no HTTP client is supplied.
	DefaultTimeout = 30 * time.Second

	// maxCatalogBytes is the upper bound on the catalog response size (10 MB).
	maxCatalogBytes = 10 << 20

	// maxServersideBytes bounds server-side requests and responses (1 MB).
	maxServersideBytes = 1 << 20
)

type (
	// Client fetches the catalog and module content from a registry.
	Client struct {
		baseURL    string
		httpClient *http.Client
		userAgent  string
		logger     *log.Logger
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)

	// wireModule is the JSON wire format for a catalog entry.
	wireModule struct {
		Name         string   `json:"name"`
		Description  string   `json:"description,omitempty"`
		Dependencies []string `json:"dependencies"`
		Digest       string   `json:"digest,omitempty"`
	}

	wireServersideRequest struct {
		Args []string `json:"args"`
	}

	// wireServersideResponse carries Output on 200 and Error on 422.
	wireServersideResponse struct {
		Output string `json:"output,omitempty"`
		Error  string `json:"error,omitempty"`
	}
)

// WithHTTPClient sets a custom HTTP client. Its Timeout replaces WithTimeout.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *log.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a client for the registry at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "kiwi/dev",
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the registry base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// List fetches the registry catalog.
func (c *Client) List(ctx context.Context) (*kiwimod.Catalog, error) {
	body, err := c.get(ctx, "list", "", c.baseURL+"/modules", maxCatalogBytes)
	if err != nil {
		return nil, err
	}

	var wire []wireModule
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &Error{Op: "list", Err: unreachable(fmt.Errorf("decoding catalog: %w", err))}
	}

	modules := make([]kiwimod.Descriptor, 0, len(wire))
	for i, w := range wire {
		desc := kiwimod.Descriptor{
			Name:         kiwimod.Name(w.Name),
			Description:  w.Description,
			Dependencies: kiwimod.Names(w.Dependencies...),
			Digest:       strings.ToLower(w.Digest),
		}
		if err := desc.Validate(); err != nil {
			c.logger.Warn("skipping invalid catalog entry", "index", i, "error", err)
			continue
		}
		modules = append(modules, desc)
	}

	c.logger.Debug("fetched catalog", "registry", c.baseURL, "modules", len(modules))
	return kiwimod.NewCatalog(modules...), nil
}

// Download fetches the content of name. A 404 yields ErrNotFound; other
// failures match ErrUnreachableRegistry.
func (c *Client) Download(ctx context.Context, name kiwimod.Name) ([]byte, error) {
	if err := name.Validate(); err != nil {
		return nil, &Error{Op: "download", Module: name, Err: err}
	}
	endpoint := c.baseURL + "/modules/" + url.PathEscape(string(name)) + "/content"
	return c.get(ctx, "download", name, endpoint, kiwimod.MaxContentSize)
}

// DownloadVerified downloads desc and checks the result against desc.Digest
// when the catalog advertised one.
func (c *Client) DownloadVerified(ctx context.Context, desc kiwimod.Descriptor) (kiwimod.Descriptor, error) {
	content, err := c.Download(ctx, desc.Name)
	if err != nil {
		return kiwimod.Descriptor{}, err
	}
	if desc.Digest != "" && !kiwimod.SameDigest(desc.Digest, kiwimod.Digest(content)) {
		return kiwimod.Descriptor{}, &Error{Op: "download", Module: desc.Name, Err: ErrDigestMismatch}
	}
	return desc.WithContent(content), nil
}

// Serverside asks the registry to run the server-side logic of name with args
// and returns its output. A registry without server-side logic yields
// ErrNoServerside; a failing module yields ErrServersideFailed.
func (c *Client) Serverside(ctx context.Context, name kiwimod.Name, args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	body, err := json.Marshal(wireServersideRequest{Args: args})
	if err != nil {
		return "", &Error{Op: "serverside", Module: name, Err: err}
	}

	endpoint := c.baseURL + "/modules/" + url.PathEscape(string(name)) + "/serverside"
	data, err := c.do(ctx, http.MethodPost, "serverside", name, endpoint, body, maxServersideBytes)
	if err != nil {
		return "", err
	}

	var resp wireServersideResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &Error{Op: "serverside", Module: name, Err: unreachable(fmt.Errorf("decoding response: %w", err))}
	}
	return resp.Output, nil
}

func (c *Client) get(ctx context.Context, op string, module kiwimod.Name, endpoint string, limit int64) ([]byte, error) {
	return c.do(ctx, http.MethodGet, op, module, endpoint, nil, limit)
}

func (c *Client) do(ctx context.Context, method, op string, module kiwimod.Name, endpoint string, body []byte, limit int64) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, &Error{Op: op, Module: module, Err: unreachable(err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Module: module, Err: unreachable(err)}
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	c.logger.Debug("registry request", "method", method, "url", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound && module != "":
		return nil, &Error{Op: op, Module: module, Err: ErrNotFound}
	case resp.StatusCode == http.StatusNotImplemented:
		return nil, &Error{Op: op, Module: module, Err: ErrNoServerside}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var failed wireServersideResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxServersideBytes)).Decode(&failed)
		return nil, &Error{Op: op, Module: module, Err: fmt.Errorf("%w: %s", ErrServersideFailed, failed.Error)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Error{Op: op, Module: module, Err: unreachable(fmt.Errorf("unexpected status %d", resp.StatusCode))}
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &Error{Op: op, Module: module, Err: unreachable(fmt.Errorf("reading response: %w", err))}
	}
	if n > limit {
		return nil, &Error{Op: op, Module: module, Err: unreachable(fmt.Errorf("response exceeds %d bytes", limit))}
	}
	return buf.Bytes(), nil
}
