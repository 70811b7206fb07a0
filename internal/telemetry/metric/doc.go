// Package metric provides Prometheus metrics for meshtls.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Registry, connection and reload metrics, HTTP handler
//   - collector.go: Scrape-time collector for the active credential bundle
//
// Metrics include:
//
//   - Connection outcomes and handshake failure kinds
//   - Handshake latency histogram
//   - Active session gauge and absent identity counter
//   - Reload attempts and bundle expiry
//
// Metrics are exposed at /metrics on the admin listener.
package metric
