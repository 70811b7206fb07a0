// Package tlsroots provides TLS trust material helpers for meshtls.
//
// This package handles trust anchors and credential file observation:
//
//   - roots.go: CA bundle parsing into an isolated anchor pool
//   - watcher.go: Credential file change notification via fsnotify
//
// Features:
//
//   - No system roots: only configured anchors are trusted
//   - Anchor count exposure for empty-bundle detection
//   - Directory watching so atomic rename writes are seen
//   - Trailing-edge debounce of bursts of file events
package tlsroots
