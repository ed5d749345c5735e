package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the PLZ lookup caches.
type Metrics struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates and registers all geo cache metrics.
func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vacme_geo_cache_hits_total",
			Help: "Total number of PLZ cache lookups answered from the cache",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vacme_geo_cache_misses_total",
			Help: "Total number of PLZ cache lookups computed from the reference tables",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordHit(kind string) {
	m.CacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordMiss(kind string) {
	m.CacheMisses.WithLabelValues(kind).Inc()
}
