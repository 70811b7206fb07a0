package mtlsserver

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/meshtls/internal/core/credential"
	"github.com/yndnr/meshtls/internal/core/identity"
	"github.com/yndnr/meshtls/internal/telemetry/logger"
)

// Handler serves one authenticated session. The session is closed when
// ServeSession returns.
type Handler interface {
	ServeSession(ctx context.Context, sess *Session)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, sess *Session)

// ServeSession calls f(ctx, sess).
func (f HandlerFunc) ServeSession(ctx context.Context, sess *Session) {
	f(ctx, sess)
}

// Session is an authenticated mutual-TLS connection.
//
// It is a net.Conn over the TLS stream. The peer identity and the bundle the
// session was accepted with are fixed for its lifetime.
type Session struct {
	id       string
	conn     *tls.Conn
	bundle   *credential.Bundle
	identity identity.Identity
	state    tls.ConnectionState

	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

// ID returns the session identifier. It also appears as conn_id in logs.
func (s *Session) ID() string { return s.id }

// Identity returns the peer identity, which may be absent.
func (s *Session) Identity() identity.Identity { return s.identity }

// BundleID returns the ID of the credential bundle the session is pinned to.
func (s *Session) BundleID() string { return s.bundle.ID() }

// ConnectionState returns the negotiated TLS state.
func (s *Session) ConnectionState() tls.ConnectionState { return s.state }

func (s *Session) Read(p []byte) (int, error)  { return s.conn.Read(p) }
func (s *Session) Write(p []byte) (int, error) { return s.conn.Write(p) }

func (s *Session) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *Session) SetDeadline(t time.Time) error      { return s.conn.SetDeadline(t) }
func (s *Session) SetReadDeadline(t time.Time) error  { return s.conn.SetReadDeadline(t) }
func (s *Session) SetWriteDeadline(t time.Time) error { return s.conn.SetWriteDeadline(t) }

// Close closes the TLS stream and releases the pinned bundle. Only the first
// call has any effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

var _ net.Conn = (*Session)(nil)

// serveConn runs the handshake on raw with bundle and, on success, the
// handler. raw is always closed and release always called before it returns.
func (s *Server) serveConn(ctx context.Context, raw net.Conn, bundle *credential.Bundle, release func()) {
	s.setState(raw, StateHandshaking)

	tlsConn := tls.Server(raw, bundle.ServerConfig())
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	start := time.Now()
	err := tlsConn.HandshakeContext(hctx)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		herr := classifyHandshake(err, raw.RemoteAddr())
		s.logger.Warn("tls handshake failed",
			"remote", herr.Remote,
			"kind", string(herr.Kind),
			"bundle_id", bundle.ID(),
			"error", err,
		)
		s.metrics.HandshakeFailed(string(herr.Kind), elapsed)
		s.setState(raw, StateHandshakeFailed)
		_ = tlsConn.Close()
		release()
		s.setState(raw, StateClosed)
		return
	}

	cs := tlsConn.ConnectionState()
	sess := &Session{
		id:       ulid.Make().String(),
		conn:     tlsConn,
		bundle:   bundle,
		identity: identity.FromConnectionState(cs),
		state:    cs,
	}
	sess.onClose = func() {
		release()
		s.metrics.SessionClosed()
		s.setState(raw, StateClosed)
	}

	s.logger.Info("peer connected",
		"conn_id", sess.id,
		"remote", raw.RemoteAddr().String(),
		"identity", sess.identity.String(),
		"tls_version", tls.VersionName(cs.Version),
		"bundle_id", bundle.ID(),
	)
	s.metrics.HandshakeSucceeded(sess.identity.Present(), elapsed)
	s.setState(raw, StateEstablished)

	s.handle(ctx, sess)
}

// handle runs the handler with panic recovery and closes the session.
func (s *Server) handle(ctx context.Context, sess *Session) {
	defer sess.Close()

	sessLogger := s.logger.With("conn_id", sess.id)
	ctx = logger.WithConnID(ctx, sess.id)
	ctx = logger.WithLogger(ctx, logger.FromSlog(s.logger))

	defer func() {
		if r := recover(); r != nil {
			sessLogger.Error("session handler panic",
				"identity", sess.identity.String(),
				"panic", r,
			)
		}
	}()

	s.handler.ServeSession(ctx, sess)
}
