package mtlsserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/meshtls/internal/core/credential"
)

// Config holds the acceptor configuration.
type Config struct {
	// Addr is the TCP address Start binds, e.g. ":8080".
	Addr string
	// PollInterval bounds each wait in Accept (default: 1s).
	PollInterval time.Duration
	// HandshakeTimeout bounds each TLS handshake (default: 10s).
	HandshakeTimeout time.Duration
	// HandshakeRate is the number of new connections admitted per second.
	// Set to 0 to disable admission limiting.
	HandshakeRate float64
	// HandshakeBurst is the burst allowed above HandshakeRate.
	HandshakeBurst int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:             ":8080",
		PollInterval:     time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// ConnState is the state of a client connection, reported to the hook set
// with WithConnStateHook.
type ConnState int

const (
	// StateAccepted is a TCP connection that has just been accepted.
	StateAccepted ConnState = iota
	// StateHandshaking is a connection in the TLS handshake.
	StateHandshaking
	// StateEstablished is an authenticated session handed to the handler.
	StateEstablished
	// StateHandshakeFailed is a connection whose handshake failed.
	StateHandshakeFailed
	// StateClosed is a connection that has been closed. Terminal.
	StateClosed
)

var connStateNames = map[ConnState]string{
	StateAccepted:        "accepted",
	StateHandshaking:     "handshaking",
	StateEstablished:     "established",
	StateHandshakeFailed: "handshake_failed",
	StateClosed:          "closed",
}

func (c ConnState) String() string {
	if name, ok := connStateNames[c]; ok {
		return name
	}
	return "unknown"
}

// Metrics receives connection events. metric.Registry implements it.
type Metrics interface {
	ConnectionRejected()
	HandshakeFailed(kind string, d time.Duration)
	HandshakeSucceeded(identityPresent bool, d time.Duration)
	SessionClosed()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionRejected()                    {}
func (nopMetrics) HandshakeFailed(string, time.Duration)  {}
func (nopMetrics) HandshakeSucceeded(bool, time.Duration) {}
func (nopMetrics) SessionClosed()                         {}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithConnStateHook sets a function called on every connection state change.
// It is called synchronously from connection goroutines and must not block.
func WithConnStateHook(fn func(net.Conn, ConnState)) Option {
	return func(s *Server) {
		s.connState = fn
	}
}

// WithOnPoll sets a function called by the accept loop each time a poll
// interval passes without a new connection.
func WithOnPoll(fn func()) Option {
	return func(s *Server) {
		s.onPoll = fn
	}
}

// Server is the mutual-TLS session acceptor.
type Server struct {
	cfg       *Config
	slot      *credential.Slot
	handler   Handler
	logger    *slog.Logger
	metrics   Metrics
	limiter   *rate.Limiter
	connState func(net.Conn, ConnState)
	onPoll    func()

	mu       sync.Mutex
	ln       net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	shutdown atomic.Bool
	wg       sync.WaitGroup
}

// New creates a server that serves handler with credentials from slot.
func New(cfg *Config, slot *credential.Slot, handler Handler, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:     &c,
		slot:    slot,
		handler: handler,
		logger:  slog.Default(),
		metrics: nopMetrics{},
		conns:   make(map[net.Conn]struct{}),
	}
	if c.HandshakeRate > 0 {
		burst := c.HandshakeBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(c.HandshakeRate), burst)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds Config.Addr and serves until ctx is done or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Addr returns the bound listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// deadliner is implemented by *net.TCPListener and *net.UnixListener.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Serve accepts connections on ln until ctx is done or Shutdown is called.
// ln is closed on return. Sessions already running are not interrupted when
// ctx ends; use Shutdown to drain them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer ln.Close()

	s.logger.Info("mtls server listening",
		"address", ln.Addr().String(),
		"poll_interval", s.cfg.PollInterval,
	)

	dl, canPoll := ln.(deadliner)
	if !canPoll {
		stop := context.AfterFunc(ctx, func() { ln.Close() })
		defer stop()
	}

	var tempDelay time.Duration
	for {
		if ctx.Err() != nil {
			return nil
		}
		if canPoll {
			if err := dl.SetDeadline(time.Now().Add(s.cfg.PollInterval)); err != nil {
				if s.shutdown.Load() || errors.Is(err, net.ErrClosed) {
					return s.closedErr()
				}
				return err
			}
		}

		raw, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if ctx.Err() != nil {
					return nil
				}
				if s.onPoll != nil {
					s.onPoll()
				}
				continue
			}

			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.logger.Error("accept error", "error", err, "retry_in", tempDelay)
			select {
			case <-time.After(tempDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		tempDelay = 0

		s.accept(connCtx, raw)
	}
}

// accept pins the active bundle to raw and starts its goroutine.
func (s *Server) accept(ctx context.Context, raw net.Conn) {
	s.setState(raw, StateAccepted)

	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Debug("connection rejected by admission limit", "remote", raw.RemoteAddr().String())
		s.metrics.ConnectionRejected()
		raw.Close()
		s.setState(raw, StateClosed)
		return
	}

	bundle := s.slot.Load()
	release := bundle.Acquire()

	if !s.track(raw) {
		raw.Close()
		release()
		s.setState(raw, StateClosed)
		return
	}

	go func() {
		defer s.wg.Done()
		defer s.untrack(raw)
		s.serveConn(ctx, raw, bundle, release)
	}()
}

// track registers raw and adds it to the wait group. It reports false once
// shutdown has started.
func (s *Server) track(raw net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.conns[raw] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(raw net.Conn) {
	s.mu.Lock()
	delete(s.conns, raw)
	s.mu.Unlock()
}

func (s *Server) setState(c net.Conn, state ConnState) {
	if s.connState != nil {
		s.connState(c, state)
	}
}

func (s *Server) closedErr() error {
	if s.shutdown.Load() {
		return ErrServerClosed
	}
	return net.ErrClosed
}

// Shutdown stops accepting and waits for open connections to finish. If ctx
// ends first, the remaining connections are closed and ctx.Err() returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown.Store(true)
	ln := s.ln
	s.mu.Unlock()

	var firstErr error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return firstErr
	case <-ctx.Done():
	}

	s.mu.Lock()
	remaining := len(s.conns)
	for c := range s.conns {
		c.Close()
	}
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.logger.Warn("shutdown deadline reached, closed remaining connections", "count", remaining)
	return ctx.Err()
}
