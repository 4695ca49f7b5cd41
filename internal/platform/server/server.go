// Package server runs an http.Server whose listener is bound before serving starts, so address
// conflicts surface as a startup error instead of a failure inside a background goroutine.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Server couples an http.Server with the listener it serves on.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// New returns a Server for addr with the standard timeouts and header limit.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    64 << 10, // 64 KB
		},
	}
}

// Listen binds the TCP address. It returns the OS error, wrapped with the address, when the port
// is in use or the host cannot be bound. It is not retried.
func (s *Server) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.srv.Addr)
	}
	s.ln = ln
	return nil
}

// Addr reports the bound address, which differs from the configured one when port 0 was requested.
// Before Listen it returns the configured address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Serve accepts connections until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.New("serve called before listen")
	}
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires. The
// listener is released even if Serve was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return errors.Wrap(err, "close listener")
		}
	}
	return nil
}
