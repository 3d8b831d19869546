// Package server implements the connection dispatcher: per-connection
// version exchange, key exchange scheduling, SERVICE_REQUEST/USERAUTH_REQUEST
// routing, channel lifecycle multiplexing, and the DISCONNECT/IGNORE/
// UNIMPLEMENTED production this core's error handling design calls for.
// Server itself is a thin accept-loop-with-semaphore wrapper, grounded on
// socks.Server's ListenAndServe/Serve pair in the teacher.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cvsouth/sshd-go/handler"
	"github.com/cvsouth/sshd-go/hostkey"
	"github.com/cvsouth/sshd-go/negotiate"
)

const maxConns = 4096

// Server accepts connections and drives each one through the full
// transport/connection lifecycle against a single Handler.
type Server struct {
	Addr       string
	HostKeys   *hostkey.Set
	Handler    handler.Handler
	Preference negotiate.Preference
	Timeout    time.Duration
	// KeepaliveInterval, if nonzero, makes each connection emit an
	// SSH_MSG_IGNORE at this interval, the supplemented keepalive
	// production connection.rs only ever consumed, never sent.
	KeepaliveInterval time.Duration
	Logger            *slog.Logger

	ln  net.Listener
	sem chan struct{}
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithPreference overrides the default algorithm preference (negotiate.Default()).
func WithPreference(p negotiate.Preference) Option {
	return func(s *Server) { s.Preference = p }
}

// WithTimeout sets the idle-read timeout enforced on every connection; zero
// (the default) disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.Timeout = d }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.Logger = l }
}

// WithKeepalive makes every connection emit an SSH_MSG_IGNORE every d;
// zero (the default) disables keepalive production.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) { s.KeepaliveInterval = d }
}

// New builds a Server that authenticates and serves channels through h,
// presenting the given host keys during key exchange.
func New(keys *hostkey.Set, h handler.Handler, opts ...Option) *Server {
	s := &Server{
		HostKeys:   keys,
		Handler:    h,
		Preference: negotiate.Default(),
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe opens a TCP listener on s.Addr and serves it until an
// accept error ends the loop.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, dispatching each on its own goroutine,
// until ln.Accept returns an error (typically because ln was closed).
func (s *Server) Serve(ln net.Listener) error {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.ln = ln
	s.sem = make(chan struct{}, maxConns)
	s.Logger.Info("sshd listening", "addr", ln.Addr().String())

	for {
		nc, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("server: accept: %w", err)
		}
		s.sem <- struct{}{}
		go func() {
			defer func() { <-s.sem }()
			s.serveOne(nc)
		}()
	}
}

// Accept pulls a single connection from ln and drives it synchronously,
// returning once the connection ends. Useful for tests and for callers
// that want to manage their own goroutine-per-connection policy.
func (s *Server) Accept(ctx context.Context, ln net.Listener) error {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	nc, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("server: accept: %w", err)
	}
	s.serveOne(nc)
	return nil
}

func (s *Server) serveOne(nc net.Conn) {
	defer nc.Close()
	c, err := newConn(s, nc)
	if err != nil {
		s.Logger.Warn("connection setup failed", "remote", nc.RemoteAddr(), "err", err)
		return
	}
	c.run()
}
