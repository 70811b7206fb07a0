// Package mtlsserver accepts TCP connections, authenticates them with mutual
// TLS and hands authenticated sessions to an application handler.
//
// The package is organized as follows:
//
//   - server.go: Listener ownership, the bounded accept loop and shutdown
//   - session.go: Per-connection handshake and the Session handed to handlers
//   - errors.go: Handshake failure classification
//
// Every connection is served with the credential bundle that was active in
// the slot when the connection was accepted. A reload that lands later only
// affects connections accepted after it.
//
// The accept loop wakes at least once per poll interval even without
// traffic, so context cancellation and the optional poll hook are observed
// promptly.
package mtlsserver
