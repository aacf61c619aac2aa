package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/gridcalc/internal/stats"
)

// Server accepts TCP connections and serves each one with a Handler on a
// bounded pool of workers.
//
// Lifecycle:
//
//	srv := server.New(handler, server.WithWorkers(8))
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err := srv.ListenAndServe(ctx, ":7070")
//
// When every worker is busy the accept loop blocks, so further clients wait
// in the kernel listen backlog until a worker frees up. Cancelling the
// context closes the listener and every live connection; Serve returns once
// all workers have finished.
type Server struct {
	handler   *Handler
	logger    *slog.Logger
	metrics   *stats.Metrics
	sessions  *SessionRegistry
	workers   int
	reusePort bool

	mu   sync.Mutex // Guards addr
	addr net.Addr
}

// Option configures a Server.
type Option func(*Server)

// WithWorkers sets the number of connections served at once. Values below
// one select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Server) { s.workers = n }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records connection metrics on m.
func WithMetrics(m *stats.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReusePort sets SO_REUSEPORT on listeners opened by ListenAndServe.
// It has no effect on platforms without the option.
func WithReusePort(on bool) Option {
	return func(s *Server) { s.reusePort = on }
}

// New returns a Server that serves connections with h.
func New(h *Handler, opts ...Option) *Server {
	s := &Server{
		handler:  h,
		sessions: NewSessionRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = runtime.NumCPU()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := listenConfig(s.reusePort)
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails.
// It always closes ln. A cancelled ctx is a clean shutdown and yields nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.sessions.CloseAll()
	})
	defer stop()

	s.logger.Info("server listening", "addr", ln.Addr().String(), "workers", s.workers)

	var g errgroup.Group
	g.SetLimit(s.workers)

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = err
			}
			break
		}

		sess := newSession(conn)
		if !s.sessions.Add(sess) {
			conn.Close()
			continue
		}
		s.metrics.ConnOpened()

		// Blocks while all workers are busy.
		g.Go(func() error {
			defer s.sessions.Remove(sess.ID)
			defer s.metrics.ConnClosed()
			if err := s.handler.serve(ctx, sess); err != nil {
				s.logger.Debug("connection closed with error", "conn", sess.ID, "err", err)
			}
			return nil
		})
	}

	cancel()
	_ = g.Wait()

	if acceptErr != nil && !errors.Is(acceptErr, net.ErrClosed) {
		s.logger.Error("accept failed", "err", acceptErr)
		return fmt.Errorf("accept: %w", acceptErr)
	}
	if parent.Err() != nil {
		s.logger.Info("server stopped")
	}
	return nil
}

// Addr returns the address being served, or nil before Serve starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Sessions returns the live connections, oldest first.
func (s *Server) Sessions() []SessionInfo {
	return s.sessions.All()
}

// ActiveSessions returns the number of live connections.
func (s *Server) ActiveSessions() int {
	return s.sessions.Len()
}
