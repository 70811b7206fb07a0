package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meshtls"

// Connection results recorded in meshtls_connections_total.
const (
	ResultEstablished     = "established"
	ResultHandshakeFailed = "handshake_failed"
	ResultRejected        = "rejected"
)

// Reload results recorded in meshtls_reloads_total.
const (
	ReloadSuccess = "success"
	ReloadFailure = "failure"
)

// Registry holds all application metrics.
//
// It implements the acceptor's metrics sink, so it can be passed directly to
// mtlsserver.WithMetrics.
type Registry struct {
	reg *prometheus.Registry

	// Connection metrics
	ConnectionsTotal  *prometheus.CounterVec
	HandshakeFailures *prometheus.CounterVec
	HandshakeDuration *prometheus.HistogramVec
	SessionsActive    prometheus.Gauge
	IdentityAbsent    prometheus.Counter

	// Reload metrics
	ReloadsTotal *prometheus.CounterVec
}

// NewRegistry creates a registry with the meshtls metrics and the Go runtime
// and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted TCP connections by outcome",
		}, []string{"result"}),

		HandshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Failed TLS handshakes by failure kind",
		}, []string{"kind"}),

		HandshakeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "TLS handshake latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"result"}),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Authenticated sessions currently open",
		}),

		IdentityAbsent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_absent_total",
			Help:      "Authenticated peers whose certificate carried no SPIFFE URI",
		}),

		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Credential reload attempts by result",
		}, []string{"result"}),
	}

	r.reg.MustRegister(
		r.ConnectionsTotal,
		r.HandshakeFailures,
		r.HandshakeDuration,
		r.SessionsActive,
		r.IdentityAbsent,
		r.ReloadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Gatherer returns the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ConnectionRejected records a connection refused by the admission limiter.
func (r *Registry) ConnectionRejected() {
	r.ConnectionsTotal.WithLabelValues(ResultRejected).Inc()
}

// HandshakeFailed records a failed handshake of the given kind.
func (r *Registry) HandshakeFailed(kind string, d time.Duration) {
	r.ConnectionsTotal.WithLabelValues(ResultHandshakeFailed).Inc()
	r.HandshakeFailures.WithLabelValues(kind).Inc()
	r.HandshakeDuration.WithLabelValues(ResultHandshakeFailed).Observe(d.Seconds())
}

// HandshakeSucceeded records an authenticated session being opened.
func (r *Registry) HandshakeSucceeded(identityPresent bool, d time.Duration) {
	r.ConnectionsTotal.WithLabelValues(ResultEstablished).Inc()
	r.HandshakeDuration.WithLabelValues(ResultEstablished).Observe(d.Seconds())
	r.SessionsActive.Inc()
	if !identityPresent {
		r.IdentityAbsent.Inc()
	}
}

// SessionClosed records an authenticated session ending.
func (r *Registry) SessionClosed() {
	r.SessionsActive.Dec()
}

// ReloadObserved records one reload attempt.
func (r *Registry) ReloadObserved(ok bool) {
	if ok {
		r.ReloadsTotal.WithLabelValues(ReloadSuccess).Inc()
		return
	}
	r.ReloadsTotal.WithLabelValues(ReloadFailure).Inc()
}
