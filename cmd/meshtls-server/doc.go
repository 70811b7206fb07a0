// Package main provides the entry point for meshtls-server.
//
// The server accepts mutually authenticated TLS connections, takes the
// caller's SPIFFE identity from its client certificate, and answers each
// session with a fixed HTTP/1.1 greeting naming that identity:
//
//   - client certificates are required and verified against the CA bundle
//   - credentials reload on SIGHUP, file changes or the admin API
//   - an admin listener serves health checks, metrics and reload
//
// Usage:
//
//	meshtls-server [--config FILE] [--cert FILE --key FILE --ca FILE] [--port N]
//	meshtls-server check
//	meshtls-server identity cert.pem
//	meshtls-server reload --wait
package main
