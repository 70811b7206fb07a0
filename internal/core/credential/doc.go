// Package credential loads TLS server credentials and holds the active set.
//
// A Bundle is built by Load from three PEM files: the certificate chain, its
// private key and the CA bundle used to verify peers. Bundles are immutable.
// The Slot publishes the bundle that new handshakes must use and is replaced
// wholesale on reload.
//
// Every load failure is a *LoadError carrying a Reason tag:
//
//   - unreadable: a file could not be read
//   - malformed_pem: no usable PEM block, or it did not parse
//   - key_mismatch: the key does not belong to the certificate
//   - empty_trust: the CA file held no certificate
package credential
