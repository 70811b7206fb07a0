// Package localserver serves the admin API on a Unix domain socket.
//
// The socket is an alternative to the TCP admin listener for hosts where
// the operator should not expose a port at all. Access is controlled by the
// socket file's permissions rather than by an IP allowlist:
//
//   - the socket is created with mode 0600 unless configured otherwise
//   - a stale socket left by a crashed process is removed on start
//   - a socket still answered by another process is never removed
package localserver
