// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

type memSource struct {
	modules []kiwimod.Descriptor
	err     error
}

func (m *memSource) Modules() ([]kiwimod.Descriptor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.modules, nil
}

func (m *memSource) Descriptor(name kiwimod.Name) (kiwimod.Descriptor, error) {
	for _, d := range m.modules {
		if d.Name == name {
			return d, nil
		}
	}
	return kiwimod.Descriptor{}, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}

func newTestRegistry(t *testing.T, modules ...kiwimod.Descriptor) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(NewServer(&memSource{modules: modules}))
	t.Cleanup(ts.Close)
	return ts
}

func module(name, content string, deps ...string) kiwimod.Descriptor {
	return kiwimod.Descriptor{
		Name:         kiwimod.Name(name),
		Description:  "the " + name + " module",
		Dependencies: kiwimod.Names(deps...),
	}.WithContent([]byte(content))
}

func TestClientList(t *testing.T) {
	t.Parallel()

	ts := newTestRegistry(t, module("b", "echo b", "a"), module("a", "echo a"))
	c := NewClient(ts.URL + "/")

	catalog, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got, want := catalog.Names(), kiwimod.Names("b", "a"); !slices.Equal(got, want) {
		t.Errorf("catalog order = %v, want %v", got, want)
	}

	b, ok := catalog.Lookup("b")
	if !ok {
		t.Fatal("catalog missing b")
	}
	if !slices.Equal(b.Dependencies, kiwimod.Names("a")) {
		t.Errorf("b dependencies = %v, want [a]", b.Dependencies)
	}
	if b.Digest != kiwimod.Digest([]byte("echo b")) {
		t.Errorf("b digest = %q", b.Digest)
	}
	if b.Content != nil {
		t.Error("catalog entries should not carry content")
	}
}

func TestClientListSkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"name": "ok", "dependencies": []string{}},
			{"name": "bad name", "dependencies": []string{}},
			{"name": "all"},
		})
	}))
	t.Cleanup(ts.Close)

	catalog, err := NewClient(ts.URL).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := catalog.Names(); !slices.Equal(got, kiwimod.Names("ok")) {
		t.Errorf("catalog = %v, want [ok]", got)
	}
}

func TestClientDownload(t *testing.T) {
	t.Parallel()

	ts := newTestRegistry(t, module("a", "#!/bin/sh\necho a\n"))
	c := NewClient(ts.URL)

	content, err := c.Download(context.Background(), "a")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(content) != "#!/bin/sh\necho a\n" {
		t.Errorf("content = %q", content)
	}

	_, err = c.Download(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Download(missing) error = %v, want ErrNotFound", err)
	}
	if IsUnreachable(err) {
		t.Error("a 404 must not be classified as unreachable")
	}

	var regErr *Error
	if !errors.As(err, &regErr) || regErr.Module != "missing" || regErr.Op != "download" {
		t.Errorf("error should be *Error naming the module, got %#v", err)
	}
}

func TestClientDownloadVerified(t *testing.T) {
	t.Parallel()

	ts := newTestRegistry(t, module("a", "echo a"))
	c := NewClient(ts.URL)

	good := kiwimod.Descriptor{Name: "a", Digest: kiwimod.Digest([]byte("echo a"))}
	desc, err := c.DownloadVerified(context.Background(), good)
	if err != nil {
		t.Fatalf("DownloadVerified() error = %v", err)
	}
	if string(desc.Content) != "echo a" || desc.Digest != good.Digest {
		t.Errorf("DownloadVerified() = %+v", desc)
	}

	bad := kiwimod.Descriptor{Name: "a", Digest: kiwimod.Digest([]byte("tampered"))}
	if _, err := c.DownloadVerified(context.Background(), bad); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("DownloadVerified() error = %v, want ErrDigestMismatch", err)
	}

	unknown := kiwimod.Descriptor{Name: "a"}
	if _, err := c.DownloadVerified(context.Background(), unknown); err != nil {
		t.Errorf("DownloadVerified() without digest error = %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "catalog not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.NotFound(w, nil)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(tt.handler)
			t.Cleanup(ts.Close)

			c := NewClient(ts.URL, WithTimeout(100*time.Millisecond))
			_, err := c.List(context.Background())
			if !errors.Is(err, ErrUnreachableRegistry) {
				t.Errorf("List() error = %v, want ErrUnreachableRegistry", err)
			}
		})
	}
}

func TestClientConnectionRefused(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url).List(context.Background())
	if !IsUnreachable(err) {
		t.Errorf("List() error = %v, want unreachable", err)
	}
}

func TestClientSendsUserAgent(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(ts.Close)

	if _, err := NewClient(ts.URL, WithUserAgent("kiwi/1.2.3")).List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := <-agents; got != "kiwi/1.2.3" {
		t.Errorf("User-Agent = %q, want kiwi/1.2.3", got)
	}
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()

	srv := NewServer(&memSource{modules: []kiwimod.Descriptor{module("a", "echo a")}})

	tests := []struct {
		path   string
		status int
	}{
		{path: "/healthz", status: http.StatusOK},
		{path: "/modules", status: http.StatusOK},
		{path: "/modules/a", status: http.StatusOK},
		{path: "/modules/a/content", status: http.StatusOK},
		{path: "/modules/missing", status: http.StatusNotFound},
		{path: "/modules/missing/content", status: http.StatusNotFound},
		{path: "/modules/.hidden/content", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.status)
			}
		})
	}
}

func TestServerSourceFailure(t *testing.T) {
	t.Parallel()

	srv := NewServer(&memSource{err: errors.New("disk on fire")})
	req := httptest.NewRequest(http.MethodGet, "/modules", http.NoBody)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestServerEmptyDependenciesEncodeAsList(t *testing.T) {
	t.Parallel()

	srv := NewServer(&memSource{modules: []kiwimod.Descriptor{module("a", "x")}})
	req := httptest.NewRequest(http.MethodGet, "/modules/a", http.NoBody)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	deps, ok := body["dependencies"].([]any)
	if !ok || len(deps) != 0 {
		t.Errorf("dependencies = %#v, want empty list", body["dependencies"])
	}
}

func TestClientServerside(t *testing.T) {
	t.Parallel()

	type call struct {
		module kiwimod.Name
		args   []string
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	fn := func(_ context.Context, desc kiwimod.Descriptor, args []string) (string, error) {
		mu.Lock()
		calls = append(calls, call{module: desc.Name, args: args})
		mu.Unlock()
		if slices.Contains(args, "--fail") {
			return "", errors.New("exit status 3")
		}
		return "hello from " + string(desc.Name) + "\n", nil
	}
	ts := httptest.NewServer(NewServer(&memSource{modules: []kiwimod.Descriptor{module("a", "echo a")}}, WithServerside(fn)))
	t.Cleanup(ts.Close)
	c := NewClient(ts.URL)

	out, err := c.Serverside(context.Background(), "a", []string{"-n", "x"})
	if err != nil {
		t.Fatalf("Serverside() error = %v", err)
	}
	if out != "hello from a\n" {
		t.Errorf("Serverside() = %q", out)
	}
	mu.Lock()
	if len(calls) != 1 || calls[0].module != "a" || !slices.Equal(calls[0].args, []string{"-n", "x"}) {
		t.Errorf("server calls = %+v", calls)
	}
	mu.Unlock()

	if _, err := c.Serverside(context.Background(), "a", nil); err != nil {
		t.Errorf("Serverside(no args) error = %v", err)
	}

	_, err = c.Serverside(context.Background(), "a", []string{"--fail"})
	if !errors.Is(err, ErrServersideFailed) {
		t.Fatalf("Serverside(--fail) error = %v, want ErrServersideFailed", err)
	}
	if IsUnreachable(err) {
		t.Error("a failing module must not be classified as unreachable")
	}
	if !strings.Contains(err.Error(), "exit status 3") {
		t.Errorf("error %q should carry the registry's message", err)
	}

	if _, err := c.Serverside(context.Background(), "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Serverside(missing) error = %v, want ErrNotFound", err)
	}
}

func TestClientServersideDisabled(t *testing.T) {
	t.Parallel()

	ts := newTestRegistry(t, module("a", "echo a"))

	_, err := NewClient(ts.URL).Serverside(context.Background(), "a", nil)
	if !errors.Is(err, ErrNoServerside) {
		t.Errorf("Serverside() error = %v, want ErrNoServerside", err)
	}
}

func TestServerServersideRejectsBadBody(t *testing.T) {
	t.Parallel()

	fn := func(context.Context, kiwimod.Descriptor, []string) (string, error) { return "", nil }
	ts := httptest.NewServer(NewServer(&memSource{modules: []kiwimod.Descriptor{module("a", "echo a")}}, WithServerside(fn)))
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/modules/a/serverside", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
