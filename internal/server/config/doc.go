// Package config defines the meshtls-server configuration.
//
// The configuration is organized into sections:
//
//   - listener: mTLS listener address and acceptor tuning
//   - credentials: certificate, key and trust anchor files, reload sources
//   - admin: admin HTTP listener (health, metrics, status, reload)
//   - log: level and format
//
// Values are layered by internal/infra/confloader: defaults, then the YAML
// file, then MESHTLS_* environment variables, then command-line flags.
package config
