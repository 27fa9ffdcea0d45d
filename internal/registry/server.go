// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiwi-modules/kiwi/pkg/kiwimod"
)

type (
	// Source supplies the modules a Server publishes. Descriptor must return
	// an error matching fs.ErrNotExist for unknown modules.
	Source interface {
		Modules() ([]kiwimod.Descriptor, error)
		Descriptor(name kiwimod.Name) (kiwimod.Descriptor, error)
	}

	// ServersideFunc runs the server-side logic of module desc with args and
	// returns its output.
	ServersideFunc func(ctx context.Context, desc kiwimod.Descriptor, args []string) (string, error)

	// Server publishes a Source using the registry wire format.
	Server struct {
		source     Source
		serverside ServersideFunc
		logger     *log.Logger
		router     chi.Router
	}

	// ServerOption configures a Server.
	ServerOption func(*Server)
)

// WithServerLogger sets the logger used for request logs.
func WithServerLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServerside enables POST /modules/{name}/serverside. Without it the
// route answers 501.
func WithServerside(fn ServersideFunc) ServerOption {
	return func(s *Server) { s.serverside = fn }
}

// NewServer builds the router for source.
func NewServer(source Source, opts ...ServerOption) *Server {
	s := &Server{
		source: source,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.Health)
	r.Route("/modules", func(r chi.Router) {
		r.Get("/", s.ListModules)
		r.Get("/{name}", s.GetModule)
		r.Get("/{name}/content", s.GetContent)
		r.Post("/{name}/serverside", s.RunServerside)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health handles GET /healthz
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListModules handles GET /modules
func (s *Server) ListModules(w http.ResponseWriter, _ *http.Request) {
	modules, err := s.source.Modules()
	if err != nil {
		s.logger.Error("listing modules", "error", err)
		http.Error(w, "listing modules failed", http.StatusInternalServerError)
		return
	}

	out := make([]wireModule, 0, len(modules))
	for _, m := range modules {
		out = append(out, toWire(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetModule handles GET /modules/{name}
func (s *Server) GetModule(w http.ResponseWriter, r *http.Request) {
	desc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toWire(desc))
}

// GetContent handles GET /modules/{name}/content
func (s *Server) GetContent(w http.ResponseWriter, r *http.Request) {
	desc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(desc.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(desc.Content)
}

// RunServerside handles POST /modules/{name}/serverside
func (s *Server) RunServerside(w http.ResponseWriter, r *http.Request) {
	desc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.serverside == nil {
		http.Error(w, "server-side logic is not enabled", http.StatusNotImplemented)
		return
	}

	var req wireServersideRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxServersideBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.serverside(r.Context(), desc, req.Args)
	if err != nil {
		s.logger.Warn("server-side call failed", "module", desc.Name, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, wireServersideResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, wireServersideResponse{Output: out})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (kiwimod.Descriptor, bool) {
	name := kiwimod.Name(chi.URLParam(r, "name"))
	if err := name.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return kiwimod.Descriptor{}, false
	}

	desc, err := s.source.Descriptor(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "module not found", http.StatusNotFound)
		return kiwimod.Descriptor{}, false
	case err != nil:
		s.logger.Error("loading module", "module", name, "error", err)
		http.Error(w, "loading module failed", http.StatusInternalServerError)
		return kiwimod.Descriptor{}, false
	}
	return desc, true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func toWire(d kiwimod.Descriptor) wireModule {
	deps := kiwimod.Strings(d.Dependencies)
	if deps == nil {
		deps = []string{}
	}
	digest := d.Digest
	if digest == "" && d.Content != nil {
		digest = kiwimod.Digest(d.Content)
	}
	return wireModule{
		Name:         string(d.Name),
		Description:  d.Description,
		Dependencies: deps,
		Digest:       digest,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
