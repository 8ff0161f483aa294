// Package metrics exposes the cacher's Prometheus counters. A nil *Metrics
// is a valid, zero-overhead receiver: every method checks for it first, so
// callers that never enabled metrics can pass a nil pointer around without
// branching at every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registered collectors. Construct with New, which
// registers them against a fresh registry so /metrics stays free of any
// process-default collectors the caller doesn't want exposed.
type Metrics struct {
	registry *prometheus.Registry

	packetsReceived   prometheus.Counter
	packetsClassified *prometheus.CounterVec
	cacheOperations   *prometheus.CounterVec
	filterSize        prometheus.Gauge
	filterReloads     *prometheus.CounterVec
}

// New registers the cacher's collectors and returns a Metrics. Pass the
// result's Registry() to an admin HTTP handler to serve it at /metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,
		packetsReceived: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "radius_cacher_packets_received_total",
			Help: "Total RADIUS datagrams received.",
		}),
		packetsClassified: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "radius_cacher_packets_classified_total",
			Help: "Total packets classified, by action.",
		}, []string{"action"}),
		cacheOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "radius_cacher_cache_operations_total",
			Help: "Total cache operations, by op and result.",
		}, []string{"op", "result"}),
		filterSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "radius_cacher_filter_size",
			Help: "Number of identifiers in the current filter snapshot.",
		}),
		filterReloads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "radius_cacher_filter_reload_total",
			Help: "Total filter reload attempts, by result.",
		}, []string{"result"}),
	}
}

// Registry returns the Prometheus registry these collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PacketReceived() {
	if m == nil {
		return
	}
	m.packetsReceived.Inc()
}

func (m *Metrics) PacketClassified(action string) {
	if m == nil {
		return
	}
	m.packetsClassified.WithLabelValues(action).Inc()
}

func (m *Metrics) CacheOperation(op, result string) {
	if m == nil {
		return
	}
	m.cacheOperations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SetFilterSize(n int) {
	if m == nil {
		return
	}
	m.filterSize.Set(float64(n))
}

func (m *Metrics) FilterReload(result string) {
	if m == nil {
		return
	}
	m.filterReloads.WithLabelValues(result).Inc()
}
