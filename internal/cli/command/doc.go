// Package command provides the meshtls-server command line.
//
// Commands are defined with urfave/cli/v2:
//
//   - root.go: application, global flags, config and logger setup
//   - serve.go: the mTLS listener with reload sources and admin listener
//   - check.go: credential file validation
//   - identity.go: SPIFFE identity of PEM certificates
//   - reload.go: reload and status against a running server
//   - config.go: effective configuration
//   - version.go: build information
//
// Flags override MESHTLS_* environment variables, which override the YAML
// file given with --config, which overrides the built-in defaults.
package command
