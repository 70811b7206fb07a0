package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/meshtls/internal/core/credential"
)

// BundleSource yields the active credential bundle. *credential.Slot
// implements it.
type BundleSource interface {
	Load() *credential.Bundle
}

// BundleCollector reports the active bundle at scrape time, so the values
// follow reloads without any push from the reload path.
type BundleCollector struct {
	source BundleSource

	notAfter *prometheus.Desc
	loadedAt *prometheus.Desc
	sessions *prometheus.Desc
	info     *prometheus.Desc
}

// NewBundleCollector creates a collector over source.
func NewBundleCollector(source BundleSource) *BundleCollector {
	return &BundleCollector{
		source: source,
		notAfter: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bundle", "not_after_seconds"),
			"Expiry of the active server certificate as a Unix timestamp",
			nil, nil,
		),
		loadedAt: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bundle", "loaded_timestamp_seconds"),
			"When the active bundle was loaded, as a Unix timestamp",
			nil, nil,
		),
		sessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bundle", "sessions"),
			"Open sessions pinned to the active bundle",
			nil, nil,
		),
		info: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bundle", "info"),
			"Identity of the active bundle; always 1",
			[]string{"id", "serial", "fingerprint"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *BundleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.notAfter
	ch <- c.loadedAt
	ch <- c.sessions
	ch <- c.info
}

// Collect implements prometheus.Collector.
func (c *BundleCollector) Collect(ch chan<- prometheus.Metric) {
	b := c.source.Load()
	if b == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.notAfter, prometheus.GaugeValue, float64(b.NotAfter().Unix()))
	ch <- prometheus.MustNewConstMetric(c.loadedAt, prometheus.GaugeValue, float64(b.LoadedAt().Unix()))
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(b.Sessions()))
	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1, b.ID(), b.Serial(), b.Fingerprint())
}
