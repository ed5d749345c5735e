package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the registry upload pipeline.
type Metrics struct {
	BatchRuns       *prometheus.CounterVec
	RecordsUploaded *prometheus.CounterVec
	UploadDuration  *prometheus.HistogramVec
}

// New creates and registers all upload pipeline metrics.
func New() *Metrics {
	return &Metrics{
		BatchRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vacme_vmdl_batch_runs_total",
			Help: "Total number of registry batch runs, by disease and result",
		}, []string{"disease", "result"}),
		RecordsUploaded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vacme_vmdl_records_uploaded_total",
			Help: "Total number of vaccination records delivered to the registry",
		}, []string{"disease"}),
		UploadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vacme_vmdl_upload_duration_seconds",
			Help:    "Duration of one full batch cycle (query, enrich, upload, mark)",
			Buckets: prometheus.DefBuckets,
		}, []string{"disease"}),
	}
}

// RecordRun counts one finished batch cycle.
func (m *Metrics) RecordRun(disease, result string, seconds float64, records int) {
	m.BatchRuns.WithLabelValues(disease, result).Inc()
	m.UploadDuration.WithLabelValues(disease).Observe(seconds)
	if records > 0 {
		m.RecordsUploaded.WithLabelValues(disease).Add(float64(records))
	}
}
