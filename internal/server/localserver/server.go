package localserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// ErrSocketInUse is returned by Listen when another process answers on the
// socket path.
var ErrSocketInUse = errors.New("localserver: socket in use")

// DefaultMode is the permission of the socket file.
const DefaultMode fs.FileMode = 0o600

// Option configures a Server.
type Option func(*Server)

// WithMode sets the socket file permissions.
func WithMode(mode fs.FileMode) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// Server serves HTTP on a Unix domain socket.
type Server struct {
	path       string
	mode       fs.FileMode
	httpServer *http.Server

	mu sync.Mutex
	ln net.Listener
}

// New creates a server for handler on socketPath.
func New(socketPath string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		path: socketPath,
		mode: DefaultMode,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen creates the socket. A stale socket file is replaced; a live one
// fails with ErrSocketInUse.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return nil
	}
	if err := removeStale(s.path); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, s.mode); err != nil {
		ln.Close()
		return fmt.Errorf("localserver: chmod %s: %w", s.path, err)
	}
	s.ln = ln
	return nil
}

// Serve serves requests until Shutdown. It calls Listen if needed and
// returns nil after a clean shutdown.
func (s *Server) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe creates the socket and serves on it.
func (s *Server) ListenAndServe() error {
	return s.Serve()
}

// Shutdown stops accepting requests, waits for active ones within ctx and
// removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

// removeStale deletes path if it is a socket nobody is listening on.
func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("localserver: %s exists and is not a socket", path)
	}

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()
		return fmt.Errorf("%w: %s", ErrSocketInUse, path)
	}
	return os.Remove(path)
}
