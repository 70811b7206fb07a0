// Package httpserver provides the admin HTTP listener for meshtls.
//
// Routes:
//
//   - GET /healthz, GET /readyz: liveness and readiness
//   - GET /metrics: Prometheus exposition
//   - GET /admin/v1/status: active bundle, reload stats, build info
//   - POST /admin/v1/reload: queue a credential reload, or run it with ?wait=true
//
// Requests pass through the middleware chain RequestID, Recover,
// NetworkACL and Audit. Health checks only get RequestID and Recover.
package httpserver
