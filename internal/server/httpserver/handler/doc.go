// Package handler provides the admin HTTP handlers for meshtls.
//
//   - health.go: liveness and readiness
//   - admin.go: credential status and reload
//
// JSON responses other than /healthz and /metrics use the Response
// envelope.
package handler
