// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// StateCreated means Start has not been called.
	StateCreated State = iota
	// StateRunning means the listener accepts requests.
	StateRunning
	// StateStopping means Stop was called and shutdown is in progress.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: serving stopped with an error.
	StateFailed
)

const readHeaderTimeout = 10 * time.Second

// ErrNotStartable is returned by Start on a listener that already ran.
var ErrNotStartable = errors.New("registry listener cannot be started")

type (
	// State is the lifecycle state of a Listener.
	State int32

	// Listener serves a Server over HTTP. A Listener is single-use: once
	// stopped or failed, create a new one.
	Listener struct {
		handler http.Handler

		state   atomic.Int32
		mu      sync.Mutex
		srv     *http.Server
		addr    net.Addr
		lastErr error
		done    chan struct{}
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// NewListener wraps handler, usually a *Server.
func NewListener(handler http.Handler) *Listener {
	l := &Listener{handler: handler, done: make(chan struct{})}
	l.state.Store(int32(StateCreated))
	return l
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Err returns the error that moved the listener to StateFailed.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Done is closed once serving has ended for any reason.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Start begins serving on ln and returns once the listener is running.
func (l *Listener) Start(ctx context.Context, ln net.Listener) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("starting registry listener: %w", err)
	}
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return fmt.Errorf("%w in state %s", ErrNotStartable, l.State())
	}

	srv := &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	l.mu.Lock()
	l.srv = srv
	l.addr = ln.Addr()
	l.mu.Unlock()

	go func() {
		defer close(l.done)
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		l.state.Store(int32(StateFailed))
	}()
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests until ctx
// is done. Stopping a listener that never started marks it stopped.
func (l *Listener) Stop(ctx context.Context) error {
	for {
		current := l.State()
		switch current {
		case StateCreated:
			if l.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				close(l.done)
				return nil
			}
			continue
		case StateRunning:
			if !l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
				continue
			}
		default:
			<-l.done
			return l.Err()
		}
		break
	}

	l.mu.Lock()
	srv := l.srv
	l.mu.Unlock()

	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	<-l.done
	l.state.CompareAndSwap(int32(StateStopping), int32(StateStopped))
	if err != nil {
		return fmt.Errorf("shutting down registry listener: %w", err)
	}
	return l.Err()
}
