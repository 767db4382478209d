package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const readHeaderTimeout = 5 * time.Second

// Server serves a handler on a TCP address. It implements bootstrap.Service.
type Server struct {
	addr    string
	handler http.Handler
	loggers ldlog.Loggers

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
	wg  sync.WaitGroup
}

// NewServer returns a server for handler that listens on addr once started.
func NewServer(addr string, handler http.Handler, loggers ldlog.Loggers) *Server {
	return &Server{addr: addr, handler: handler, loggers: loggers}
}

// Name implements bootstrap.Service.
func (s *Server) Name() string { return "admin" }

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: readHeaderTimeout}

	s.mu.Lock()
	s.ln, s.srv = ln, srv
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.loggers.Errorf("Admin endpoint failed: %s", err)
		}
	}()
	s.loggers.Infof("Admin endpoint listening on %s", ln.Addr())
	return nil
}

// Stop shuts the server down, waiting for active requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}
