package mtlsserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/meshtls/internal/core/credential"
)

// ErrServerClosed is returned by Serve and Start after Shutdown.
var ErrServerClosed = errors.New("mtlsserver: server closed")

// HandshakeKind classifies a failed handshake.
type HandshakeKind string

const (
	// KindNoCertificate means the client sent no certificate.
	KindNoCertificate HandshakeKind = "no_certificate"
	// KindVerification means the client certificate did not verify: unknown
	// authority, outside its validity window, wrong usage or chain too deep.
	KindVerification HandshakeKind = "verification"
	// KindTimeout means the handshake did not finish in time or was
	// interrupted by shutdown.
	KindTimeout HandshakeKind = "timeout"
	// KindProtocol covers everything else: bad records, version or cipher
	// mismatch, connection reset.
	KindProtocol HandshakeKind = "protocol"
)

// HandshakeError describes a failed TLS handshake on one connection.
type HandshakeError struct {
	Kind   HandshakeKind
	Remote string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("mtlsserver: handshake with %s failed (%s): %v", e.Remote, e.Kind, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// classifyHandshake wraps err into a *HandshakeError.
func classifyHandshake(err error, remote net.Addr) *HandshakeError {
	addr := ""
	if remote != nil {
		addr = remote.String()
	}
	return &HandshakeError{Kind: handshakeKind(err), Remote: addr, Err: err}
}

func handshakeKind(err error) HandshakeKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	// crypto/tls reports a missing client certificate only as text.
	if strings.Contains(err.Error(), "didn't provide a certificate") {
		return KindNoCertificate
	}

	var (
		verifyErr     *tls.CertificateVerificationError
		unknownAuth   x509.UnknownAuthorityError
		invalidCert   x509.CertificateInvalidError
		hostnameErr   x509.HostnameError
		constraintErr x509.ConstraintViolationError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &invalidCert),
		errors.As(err, &hostnameErr),
		errors.As(err, &constraintErr),
		errors.Is(err, credential.ErrChainTooDeep),
		errors.Is(err, credential.ErrNoVerifiedChain):
		return KindVerification
	}

	return KindProtocol
}
