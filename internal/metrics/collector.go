// Package metrics exposes Prometheus metrics for rooms, loads and HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector owns a private registry so several collectors can coexist in
// one process (tests, multiple servers). All record methods accept a nil
// receiver.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	loadsTotal    *prometheus.CounterVec
	loadDuration  *prometheus.HistogramVec
	mergesTotal   *prometheus.CounterVec
	mergeDuration prometheus.Histogram

	liveResources *prometheus.GaugeVec
	rooms         prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a collector with Go runtime and process collectors
// registered alongside the fitting room metrics.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	c.loadsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_loads_total",
			Help:      "Asset loads by slot and outcome",
		},
		[]string{"slot", "outcome"}, // slot: avatar, wearable
	)

	c.loadDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_load_duration_seconds",
			Help:      "Asset load duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"slot"},
	)

	c.mergesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Merge attempts by outcome",
		},
		[]string{"outcome"},
	)

	c.mergeDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_duration_seconds",
			Help:      "Duration of successful merges in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	c.liveResources = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_resources",
			Help:      "Owned geometry and material resources currently alive",
		},
		[]string{"kind"},
	)

	c.rooms = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Open rooms",
		},
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordLoad records a finished asset load. outcome is "ok", "error" or
// "superseded".
func (c *Collector) RecordLoad(slot, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.loadsTotal.WithLabelValues(slot, outcome).Inc()
	c.loadDuration.WithLabelValues(slot).Observe(d.Seconds())
}

// RecordMerge records a merge attempt. Duration is observed only for
// successful merges.
func (c *Collector) RecordMerge(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.mergesTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		c.mergeDuration.Observe(d.Seconds())
	}
}

// SetLiveResources publishes the live resource count for kind.
func (c *Collector) SetLiveResources(kind string, n int) {
	if c == nil {
		return
	}
	c.liveResources.WithLabelValues(kind).Set(float64(n))
}

// SetRooms publishes the number of open rooms.
func (c *Collector) SetRooms(n int) {
	if c == nil {
		return
	}
	c.rooms.Set(float64(n))
}
