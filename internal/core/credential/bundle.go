package credential

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Default verification policy.
const (
	DefaultMinVersion  = tls.VersionTLS12
	DefaultVerifyDepth = 2
)

// Paths locates the PEM files a bundle is built from.
type Paths struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`
}

// Bundle is an immutable, validated set of server credentials and the peer
// verification policy that goes with them.
//
// A bundle is never modified after Load returns it. Sessions pin the bundle
// that was active when they were accepted; the counter behind Sessions only
// tracks how many are still open.
type Bundle struct {
	id          string
	paths       Paths
	certificate tls.Certificate
	leaf        *x509.Certificate
	anchors     *x509.CertPool
	anchorCerts []*x509.Certificate
	minVersion  uint16
	verifyDepth int
	loadedAt    time.Time
	fingerprint string

	sessions atomic.Int64
}

// ID returns the unique identifier assigned at load time.
func (b *Bundle) ID() string { return b.id }

// Paths returns the files the bundle was loaded from.
func (b *Bundle) Paths() Paths { return b.paths }

// Leaf returns the parsed server certificate.
func (b *Bundle) Leaf() *x509.Certificate { return b.leaf }

// Fingerprint returns the hex SHA-256 of the server certificate.
func (b *Bundle) Fingerprint() string { return b.fingerprint }

// MinVersion returns the lowest TLS version offered.
func (b *Bundle) MinVersion() uint16 { return b.minVersion }

// VerifyDepth returns the maximum number of intermediates allowed between a
// peer certificate and a trust anchor.
func (b *Bundle) VerifyDepth() int { return b.verifyDepth }

// LoadedAt returns when the bundle was built.
func (b *Bundle) LoadedAt() time.Time { return b.loadedAt }

// NotAfter returns the expiry of the server certificate.
func (b *Bundle) NotAfter() time.Time { return b.leaf.NotAfter }

// Serial returns the server certificate serial in hex.
func (b *Bundle) Serial() string { return fmt.Sprintf("%x", b.leaf.SerialNumber) }

// AnchorCount returns the number of trust anchors.
func (b *Bundle) AnchorCount() int { return len(b.anchorCerts) }

// TrustAnchors returns a copy of the anchor pool.
func (b *Bundle) TrustAnchors() *x509.CertPool { return b.anchors.Clone() }

// Sessions returns the number of open sessions pinned to the bundle.
func (b *Bundle) Sessions() int64 { return b.sessions.Load() }

// Acquire pins the bundle for one session. The returned release function
// must be called when the session ends; extra calls are ignored.
func (b *Bundle) Acquire() (release func()) {
	b.sessions.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { b.sessions.Add(-1) })
	}
}

// ServerConfig returns a new server-side TLS configuration built only from
// the bundle. The peer must present a certificate that chains to one of the
// anchors within the verification depth.
func (b *Bundle) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates:           []tls.Certificate{b.certificate},
		ClientCAs:              b.anchors,
		ClientAuth:             tls.RequireAndVerifyClientCert,
		MinVersion:             b.minVersion,
		SessionTicketsDisabled: true,
		VerifyConnection:       b.verifyConnection,
	}
}

// verifyConnection applies the depth limit to the chains the TLS stack
// already verified. Depth counts intermediates only: the leaf and the anchor
// are not included, matching OpenSSL's verify depth.
func (b *Bundle) verifyConnection(cs tls.ConnectionState) error {
	if len(cs.VerifiedChains) == 0 {
		return ErrNoVerifiedChain
	}
	longest := 0
	for _, chain := range cs.VerifiedChains {
		if len(chain)-2 <= b.verifyDepth {
			return nil
		}
		longest = max(longest, len(chain))
	}
	return fmt.Errorf("%w: %d intermediates, limit %d", ErrChainTooDeep, longest-2, b.verifyDepth)
}

// Summary is a printable view of a bundle.
type Summary struct {
	ID          string    `json:"id" yaml:"id"`
	Subject     string    `json:"subject" yaml:"subject"`
	Serial      string    `json:"serial" yaml:"serial"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	NotBefore   time.Time `json:"not_before" yaml:"not_before"`
	NotAfter    time.Time `json:"not_after" yaml:"not_after"`
	Anchors     int       `json:"anchors" yaml:"anchors"`
	MinVersion  string    `json:"min_version" yaml:"min_version"`
	VerifyDepth int       `json:"verify_depth" yaml:"verify_depth"`
	LoadedAt    time.Time `json:"loaded_at" yaml:"loaded_at"`
	Sessions    int64     `json:"sessions" yaml:"sessions"`
	Paths       Paths     `json:"paths" yaml:"paths"`
}

// Summarize returns a snapshot of the bundle's metadata.
func (b *Bundle) Summarize() Summary {
	return Summary{
		ID:          b.id,
		Subject:     b.leaf.Subject.String(),
		Serial:      b.Serial(),
		Fingerprint: b.fingerprint,
		NotBefore:   b.leaf.NotBefore,
		NotAfter:    b.leaf.NotAfter,
		Anchors:     len(b.anchorCerts),
		MinVersion:  tls.VersionName(b.minVersion),
		VerifyDepth: b.verifyDepth,
		LoadedAt:    b.loadedAt,
		Sessions:    b.sessions.Load(),
		Paths:       b.paths,
	}
}
