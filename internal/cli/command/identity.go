package command

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshtls/internal/core/identity"
)

// IdentityCommand returns the identity command.
func IdentityCommand() *cli.Command {
	return &cli.Command{
		Name:      "identity",
		Usage:     "Print the SPIFFE identity of PEM certificates",
		ArgsUsage: "[FILE...]",
		Description: "Prints the identity a peer presenting each certificate would be given.\n" +
			"Without arguments the configured server certificate is read.",
		Action: identityAction,
	}
}

// certIdentity is one row of identity output.
type certIdentity struct {
	File        string   `json:"file" yaml:"file"`
	Subject     string   `json:"subject" yaml:"subject"`
	Identity    string   `json:"identity" yaml:"identity"`
	TrustDomain string   `json:"trust_domain,omitempty" yaml:"trust_domain,omitempty"`
	Conformant  bool     `json:"conformant" yaml:"conformant"`
	URIs        []string `json:"uris,omitempty" yaml:"uris,omitempty" table:"wide"`
}

func identityAction(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		cfg, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		files = []string{cfg.Credentials.CertFile}
	}

	var rows []certIdentity
	for _, f := range files {
		certs, err := readCertificates(f)
		if err != nil {
			return err
		}
		for _, cert := range certs {
			rows = append(rows, describeIdentity(f, cert))
		}
	}
	return render(c, rows)
}

func describeIdentity(file string, cert *x509.Certificate) certIdentity {
	id := identity.Extract(cert)
	uris, err := identity.URIs(cert)
	if err != nil {
		uris = nil
	}
	return certIdentity{
		File:        file,
		Subject:     cert.Subject.String(),
		Identity:    id.String(),
		TrustDomain: id.TrustDomain(),
		Conformant:  id.Conformant(),
		URIs:        uris,
	}
}

// readCertificates parses every CERTIFICATE block in path.
func readCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var certs []*x509.Certificate
	for {
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
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%s: no certificates found", path)
	}
	return certs, nil
}
