// Package metrics exposes GuardGate's Prometheus metrics.
//
// A single Collector owns the registry and all metric families; components
// record through it rather than registering their own metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/config"
)

// Collector owns the Prometheus registry and every GuardGate metric family:
// request outcomes, admission occupancy, rate-limit and allowlist
// rejections, guard scan passes and blocks, and decision-cache
// effectiveness.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	admissionActive   prometheus.Gauge
	admissionWaiting  prometheus.Gauge
	admissionRejected *prometheus.CounterVec

	rateLimited     *prometheus.CounterVec
	allowlistDenied prometheus.Counter

	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	blocksTotal  *prometheus.CounterVec

	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheEntries prometheus.Gauge
}

// NewCollector creates the collector and registers all metric families on a
// fresh registry.
func NewCollector(cfg config.MetricsConfig) *Collector {
	ns := cfg.Namespace
	if ns == "" {
		ns = config.DefaultMetricsNamespace
	}

	registry := prometheus.NewRegistry()
	factory := promauto{registry}

	c := &Collector{
		registry: registry,

		requestsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "Proxied requests by endpoint and outcome.",
		}, []string{"path", "status"}),

		requestDuration: factory.histogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"path"}),

		admissionActive: factory.gauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "admission_active_slots",
			Help:      "Admission slots currently held.",
		}),

		admissionWaiting: factory.gauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "admission_waiting",
			Help:      "Requests currently waiting for an admission slot.",
		}),

		admissionRejected: factory.counterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "admission_rejected_total",
			Help:      "Admission rejections by reason (queue_full, queue_timeout).",
		}, []string{"reason"}),

		rateLimited: factory.counterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ratelimit_rejected_total",
			Help:      "Rate-limited requests by exceeded window.",
		}, []string{"window"}),

		allowlistDenied: factory.counter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "allowlist_denied_total",
			Help:      "Requests denied by the IP allowlist.",
		}),

		scansTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "guard_scans_total",
			Help:      "Guard scan passes by direction, cache source, and outcome.",
		}, []string{"direction", "source", "outcome"}),

		scanDuration: factory.histogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "guard_scan_duration_seconds",
			Help:      "Guard scan pass duration, cached lookups included.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"direction"}),

		blocksTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "guard_blocks_total",
			Help:      "Requests blocked by content policy, by direction.",
		}, []string{"direction"}),

		cacheHits: factory.counter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "guard_cache_hits_total",
			Help:      "Guard decision cache hits.",
		}),

		cacheMisses: factory.counter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "guard_cache_misses_total",
			Help:      "Guard decision cache misses.",
		}),

		cacheEntries: factory.gauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "guard_cache_entries",
			Help:      "Entries currently held by the guard decision cache.",
		}),
	}

	return c
}

// RecordRequest records one completed request.
func (c *Collector) RecordRequest(path, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(path, status).Inc()
	c.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// SetAdmission updates the admission occupancy gauges.
func (c *Collector) SetAdmission(active, waiting int) {
	c.admissionActive.Set(float64(active))
	c.admissionWaiting.Set(float64(waiting))
}

// RecordAdmissionRejected counts an admission rejection by reason.
func (c *Collector) RecordAdmissionRejected(reason string) {
	c.admissionRejected.WithLabelValues(reason).Inc()
}

// RecordRateLimited counts a rate-limit rejection by the exceeded window.
func (c *Collector) RecordRateLimited(window string) {
	c.rateLimited.WithLabelValues(window).Inc()
}

// RecordAllowlistDenied counts a request denied by the IP allowlist.
func (c *Collector) RecordAllowlistDenied() {
	c.allowlistDenied.Inc()
}

// RecordScan records one guard scan pass.
func (c *Collector) RecordScan(direction string, cached, allowed bool, elapsed time.Duration) {
	source := "scanner"
	if cached {
		source = "cache"
		c.cacheHits.Inc()
	} else {
		c.cacheMisses.Inc()
	}
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	c.scansTotal.WithLabelValues(direction, source, outcome).Inc()
	c.scanDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// RecordBlock counts one blocked request by direction.
func (c *Collector) RecordBlock(direction string) {
	c.blocksTotal.WithLabelValues(direction).Inc()
}

// SetCacheEntries updates the decision-cache size gauge.
func (c *Collector) SetCacheEntries(n int) {
	c.cacheEntries.Set(float64(n))
}

// Registry returns the underlying registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// promauto is a tiny register-on-construct helper bound to one registry.
type promauto struct {
	registry *prometheus.Registry
}

func (p promauto) counter(opts prometheus.CounterOpts) prometheus.Counter {
	m := prometheus.NewCounter(opts)
	p.registry.MustRegister(m)
	return m
}

func (p promauto) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(opts, labels)
	p.registry.MustRegister(m)
	return m
}

func (p promauto) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	m := prometheus.NewGauge(opts)
	p.registry.MustRegister(m)
	return m
}

func (p promauto) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	m := prometheus.NewHistogramVec(opts, labels)
	p.registry.MustRegister(m)
	return m
}
