// Package identity derives the caller's SPIFFE identity from a verified peer
// certificate.
//
// The identity is the first uniformResourceIdentifier in the certificate's
// SubjectAltName extension, in encoded order, whose value starts with
// "spiffe://". Other URIs are skipped. A certificate without such a URI has
// the absent identity, which is a valid outcome rather than an error.
package identity

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"strings"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// SchemePrefix marks a SPIFFE URI. The comparison is case-sensitive.
const SchemePrefix = "spiffe://"

// AbsentMarker is how an absent identity is rendered in logs.
const AbsentMarker = "absent"

var (
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

	// [6] IA5String, context-specific and primitive.
	tagURI = cbasn1.Tag(6).ContextSpecific()

	errMalformedSAN = errors.New("identity: malformed subjectAltName")
)

// Identity is the caller identity taken from a peer certificate.
type Identity struct {
	// URI is the raw SPIFFE URI exactly as encoded, or "" when absent.
	URI string

	// ID is the parsed form when URI conforms to the SPIFFE ID grammar.
	// It is the zero ID otherwise.
	ID spiffeid.ID
}

// Present reports whether a SPIFFE URI was found.
func (i Identity) Present() bool {
	return i.URI != ""
}

// Conformant reports whether the URI also passes strict SPIFFE ID parsing.
// Extraction never depends on this.
func (i Identity) Conformant() bool {
	return !i.ID.IsZero()
}

// TrustDomain returns the trust domain name, or "" if the URI is absent or
// not conformant.
func (i Identity) TrustDomain() string {
	if i.ID.IsZero() {
		return ""
	}
	return i.ID.TrustDomain().Name()
}

func (i Identity) String() string {
	if i.URI == "" {
		return AbsentMarker
	}
	return i.URI
}

// Extract returns the first SPIFFE URI in cert's SubjectAltName extension.
// A nil certificate, a missing or malformed extension, or no SPIFFE URI all
// give the absent identity.
func Extract(cert *x509.Certificate) Identity {
	if cert == nil {
		return Identity{}
	}
	uris, err := URIs(cert)
	if err != nil {
		return Identity{}
	}
	for _, u := range uris {
		if strings.HasPrefix(u, SchemePrefix) {
			return newIdentity(u)
		}
	}
	return Identity{}
}

// FromConnectionState extracts the identity of the verified peer leaf.
func FromConnectionState(cs tls.ConnectionState) Identity {
	if len(cs.PeerCertificates) == 0 {
		return Identity{}
	}
	return Extract(cs.PeerCertificates[0])
}

// URIs returns every uniformResourceIdentifier in cert's SubjectAltName
// extension, in encoded order, as raw strings. x509.Certificate.URIs is not
// used because it drops values that do not parse as URLs.
func URIs(cert *x509.Certificate) ([]string, error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidSubjectAltName) {
			continue
		}
		return parseSANURIs(ext.Value)
	}
	return nil, nil
}

// parseSANURIs walks a GeneralNames SEQUENCE and collects [6] entries.
func parseSANURIs(der []byte) ([]string, error) {
	input := cryptobyte.String(der)
	var names cryptobyte.String
	if !input.ReadASN1(&names, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, errMalformedSAN
	}

	var uris []string
	for !names.Empty() {
		var (
			value cryptobyte.String
			tag   cbasn1.Tag
		)
		if !names.ReadAnyASN1(&value, &tag) {
			return nil, errMalformedSAN
		}
		if tag == tagURI {
			uris = append(uris, string(value))
		}
	}
	return uris, nil
}

func newIdentity(uri string) Identity {
	id := Identity{URI: uri}
	if parsed, err := spiffeid.FromString(uri); err == nil {
		id.ID = parsed
	}
	return id
}
