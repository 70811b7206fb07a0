// Package pkitest builds throwaway certificate authorities and leaf
// certificates for tests.
package pkitest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// CA is a certificate authority usable to issue leaves or further
// intermediates.
type CA struct {
	Cert *x509.Certificate
	Key  crypto.Signer

	// chain holds the intermediates between this CA and the root, nearest
	// first. It is empty for a root.
	chain []*x509.Certificate
}

// LeafOptions controls the contents of an issued leaf certificate.
type LeafOptions struct {
	CommonName string
	URIs       []string
	DNSNames   []string
	Emails     []string
	NotBefore  time.Time
	NotAfter   time.Time

	// ExtraExtensions is copied into the template verbatim. A SubjectAltName
	// extension here replaces the one built from URIs/DNSNames/Emails.
	ExtraExtensions []pkix.Extension
}

// Leaf is an issued end-entity certificate and its key.
type Leaf struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey

	// Chain holds the intermediates needed to reach the root, nearest first.
	Chain []*x509.Certificate
}

// NewCA creates a self-signed root CA.
func NewCA(t testing.TB, name string) *CA {
	t.Helper()

	key := newKey(t)
	template := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               pkix.Name{CommonName: name, Organization: []string{"meshtls test"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	return &CA{Cert: sign(t, template, template, &key.PublicKey, key), Key: key}
}

// Intermediate issues a subordinate CA signed by ca.
func (ca *CA) Intermediate(t testing.TB, name string) *CA {
	t.Helper()

	key := newKey(t)
	template := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               pkix.Name{CommonName: name, Organization: []string{"meshtls test"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	cert := sign(t, template, ca.Cert, &key.PublicKey, ca.Key)
	return &CA{Cert: cert, Key: key, chain: ca.issuedChain()}
}

// Issue signs a leaf certificate valid for both client and server auth.
func (ca *CA) Issue(t testing.TB, opts LeafOptions) *Leaf {
	t.Helper()

	key := newKey(t)
	notBefore := opts.NotBefore
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Hour)
	}
	notAfter := opts.NotAfter
	if notAfter.IsZero() {
		notAfter = time.Now().Add(24 * time.Hour)
	}
	cn := opts.CommonName
	if cn == "" {
		cn = "leaf"
	}

	template := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              opts.DNSNames,
		EmailAddresses:        opts.Emails,
		ExtraExtensions:       opts.ExtraExtensions,
	}
	for _, raw := range opts.URIs {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("url.Parse(%q) error = %v", raw, err)
		}
		template.URIs = append(template.URIs, u)
	}

	cert := sign(t, template, ca.Cert, &key.PublicKey, ca.Key)
	return &Leaf{Cert: cert, Key: key, Chain: ca.issuedChain()}
}

// PEM returns the CA certificate in PEM form.
func (ca *CA) PEM() []byte {
	return CertPEM(ca.Cert)
}

// issuedChain is the intermediate chain a certificate signed by ca presents.
func (ca *CA) issuedChain() []*x509.Certificate {
	if isSelfSigned(ca.Cert) {
		return nil
	}
	return append([]*x509.Certificate{ca.Cert}, ca.chain...)
}

// CertPEM returns the leaf followed by its intermediates.
func (l *Leaf) CertPEM() []byte {
	out := CertPEM(l.Cert)
	for _, c := range l.Chain {
		out = append(out, CertPEM(c)...)
	}
	return out
}

// KeyPEM returns the private key as a PKCS#8 PEM block.
func (l *Leaf) KeyPEM(t testing.TB) []byte {
	t.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(l.Key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey() error = %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// TLSCertificate returns the leaf as a tls.Certificate including intermediates.
func (l *Leaf) TLSCertificate() tls.Certificate {
	der := [][]byte{l.Cert.Raw}
	for _, c := range l.Chain {
		der = append(der, c.Raw)
	}
	return tls.Certificate{Certificate: der, PrivateKey: l.Key, Leaf: l.Cert}
}

// Files is the set of credential paths written by WriteFiles.
type Files struct {
	Cert string
	Key  string
	CA   string
}

// WriteFiles writes cert.pem, key.pem and chain.pem into dir.
// Existing files are replaced through a temporary file and rename.
func WriteFiles(t testing.TB, dir string, leaf *Leaf, anchors ...*CA) Files {
	t.Helper()

	f := Files{
		Cert: filepath.Join(dir, "cert.pem"),
		Key:  filepath.Join(dir, "key.pem"),
		CA:   filepath.Join(dir, "chain.pem"),
	}

	var caPEM []byte
	for _, a := range anchors {
		caPEM = append(caPEM, a.PEM()...)
	}

	WriteFile(t, f.Cert, leaf.CertPEM())
	WriteFile(t, f.Key, leaf.KeyPEM(t))
	WriteFile(t, f.CA, caPEM)
	return f
}

// WriteFile atomically replaces path with data.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename(%s) error = %v", path, err)
	}
}

// CertPEM encodes a certificate as a PEM block.
func CertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// Pool returns a CertPool holding the given CAs.
func Pool(cas ...*CA) *x509.CertPool {
	pool := x509.NewCertPool()
	for _, ca := range cas {
		pool.AddCert(ca.Cert)
	}
	return pool
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return key
}

func serial(t testing.TB) *big.Int {
	t.Helper()

	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatalf("rand.Int() error = %v", err)
	}
	return n
}

func sign(t testing.TB, template, parent *x509.Certificate, pub crypto.PublicKey, signer crypto.Signer) *x509.Certificate {
	t.Helper()

	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return cert
}

func isSelfSigned(cert *x509.Certificate) bool {
	return cert.CheckSignatureFrom(cert) == nil
}
