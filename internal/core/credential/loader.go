package credential

import (
	"crypto"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/meshtls/internal/infra/tlsroots"
)

// LoadOption adjusts how a bundle is built.
type LoadOption func(*loadOptions)

type loadOptions struct {
	verifyDepth int
	minVersion  uint16
	now         func() time.Time
}

// WithVerifyDepth overrides the maximum number of intermediates accepted in
// a peer chain. Negative values are ignored.
func WithVerifyDepth(depth int) LoadOption {
	return func(o *loadOptions) {
		if depth >= 0 {
			o.verifyDepth = depth
		}
	}
}

// WithMinVersion raises the lowest TLS version offered. Versions below
// TLS 1.2 are ignored.
func WithMinVersion(v uint16) LoadOption {
	return func(o *loadOptions) {
		if v >= tls.VersionTLS12 {
			o.minVersion = v
		}
	}
}

// WithClock sets the clock used to stamp LoadedAt.
func WithClock(now func() time.Time) LoadOption {
	return func(o *loadOptions) {
		o.now = now
	}
}

// Load reads a PEM certificate chain, its private key and a CA bundle and
// returns a validated Bundle. It only reads files; on failure it returns a
// *LoadError and nothing else is affected.
func Load(certPath, keyPath, caPath string, opts ...LoadOption) (*Bundle, error) {
	o := loadOptions{
		verifyDepth: DefaultVerifyDepth,
		minVersion:  DefaultMinVersion,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, loadErr(ReasonUnreadable, certPath, err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, loadErr(ReasonUnreadable, keyPath, err)
	}

	chain, err := parseCertChain(certPEM)
	if err != nil {
		return nil, loadErr(ReasonMalformedPEM, certPath, err)
	}
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, loadErr(ReasonMalformedPEM, keyPath, err)
	}
	leaf := chain[0]
	if err := matchKey(leaf, key); err != nil {
		return nil, loadErr(ReasonKeyMismatch, keyPath, err)
	}

	pool := tlsroots.NewEmptyPool()
	if err := pool.AddCertFile(caPath); err != nil {
		switch {
		case errors.Is(err, tlsroots.ErrNoCertsFound):
			return nil, loadErr(ReasonEmptyTrust, caPath, err)
		case errors.Is(err, tlsroots.ErrInvalidPEM):
			return nil, loadErr(ReasonMalformedPEM, caPath, err)
		default:
			return nil, loadErr(ReasonUnreadable, caPath, err)
		}
	}

	der := make([][]byte, len(chain))
	for i, c := range chain {
		der[i] = c.Raw
	}
	sum := sha256.Sum256(leaf.Raw)

	return &Bundle{
		id: ulid.Make().String(),
		paths: Paths{
			CertFile: certPath,
			KeyFile:  keyPath,
			CAFile:   caPath,
		},
		certificate: tls.Certificate{
			Certificate: der,
			PrivateKey:  key,
			Leaf:        leaf,
		},
		leaf:        leaf,
		anchors:     pool.Pool(),
		anchorCerts: pool.Certificates(),
		minVersion:  o.minVersion,
		verifyDepth: o.verifyDepth,
		loadedAt:    o.now(),
		fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// LoadPaths is Load for a Paths value.
func LoadPaths(p Paths, opts ...LoadOption) (*Bundle, error) {
	return Load(p.CertFile, p.KeyFile, p.CAFile, opts...)
}

// parseCertChain returns every CERTIFICATE block, leaf first.
func parseCertChain(data []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, errors.New("no CERTIFICATE block")
	}
	return chain, nil
}

// parsePrivateKey returns the first private key block. PKCS#1, PKCS#8 and
// SEC 1 encodings are accepted; encrypted keys are not.
func parsePrivateKey(data []byte) (crypto.Signer, error) {
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}

		var (
			key any
			err error
		)
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			key, err = x509.ParseECPrivateKey(block.Bytes)
		case "PRIVATE KEY":
			key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		default:
			return nil, fmt.Errorf("unsupported key block %q", block.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", strings.ToLower(block.Type), err)
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key type %T cannot sign", key)
		}
		return signer, nil
	}
	return nil, errors.New("no PRIVATE KEY block")
}

// matchKey checks that key is the private half of the certificate's public key.
func matchKey(cert *x509.Certificate, key crypto.Signer) error {
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return fmt.Errorf("key type %T not comparable", key)
	}
	if !pub.Equal(cert.PublicKey) {
		return errors.New("private key does not match certificate public key")
	}
	return nil
}
