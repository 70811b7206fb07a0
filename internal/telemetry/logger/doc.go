// Package logger provides structured logging for meshtls.
//
// It wraps the standard library log/slog:
//
//   - logger.go: Handler construction, dynamic level, package-level helpers
//   - context.go: Context-aware logging with admin request and session IDs
//   - redact.go: Masking of private key material and secret-looking fields
//
// SetDefault also installs the logger as the slog default, so components
// that fall back to slog.Default() log through the same handler.
package logger
