package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trackmeta/internal/store"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
	RateLimitedTotal   prometheus.Counter
	ReferenceEdits     prometheus.Counter
	ConfigUpdatesTotal *prometheus.CounterVec
	UpstreamRequests   *prometheus.CounterVec
	UpstreamDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them, together with the Go
// and process collectors, on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackmeta_resolutions_total",
				Help: "Total number of resolve requests by outcome",
			},
			[]string{"outcome"},
		),
		ResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackmeta_resolution_duration_seconds",
				Help:    "Time spent resolving a reference into track metadata",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackmeta_rate_limited_total",
				Help: "Total number of resolve requests rejected by the rate limiter",
			},
		),
		ReferenceEdits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackmeta_reference_edits_total",
				Help: "Total number of reference edits that cleared a field",
			},
		),
		ConfigUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackmeta_config_updates_total",
				Help: "Total number of installation configuration saves",
			},
			[]string{"status"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackmeta_upstream_requests_total",
				Help: "Total number of SoundCloud API requests",
			},
			[]string{"endpoint", "status"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackmeta_upstream_request_duration_seconds",
				Help:    "SoundCloud API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}

	reg.MustRegister(
		metrics.ResolutionsTotal,
		metrics.ResolutionDuration,
		metrics.RateLimitedTotal,
		metrics.ReferenceEdits,
		metrics.ConfigUpdatesTotal,
		metrics.UpstreamRequests,
		metrics.UpstreamDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return metrics
}

// RegisterCache exposes cache counters as gauges read at scrape time.
func RegisterCache(reg prometheus.Registerer, cache *store.MetadataCache) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "trackmeta_cache_entries",
			Help: "Number of cached resolutions",
		}, func() float64 { return float64(cache.Stats().Size) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "trackmeta_cache_hits_total",
			Help: "Total number of resolutions served from the cache",
		}, func() float64 { return float64(cache.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "trackmeta_cache_misses_total",
			Help: "Total number of cache lookups that fell through to SoundCloud",
		}, func() float64 { return float64(cache.Stats().Misses) }),
	)
}

// ObserveUpstream records one SoundCloud request. Its signature matches
// soundcloud.RequestObserver; status is 0 for transport failures.
func (m *Metrics) ObserveUpstream(endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.UpstreamRequests.WithLabelValues(endpoint, label).Inc()
	m.UpstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordResolution records a finished resolve request.
func (m *Metrics) RecordResolution(outcome string, elapsed time.Duration) {
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordRateLimited records a rejected resolve request.
func (m *Metrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
	m.ResolutionsTotal.WithLabelValues("rate_limited").Inc()
}

// RecordReferenceEdit records a reference change.
func (m *Metrics) RecordReferenceEdit() {
	m.ReferenceEdits.Inc()
}

// RecordConfigUpdate records a configuration save attempt.
func (m *Metrics) RecordConfigUpdate(status string) {
	m.ConfigUpdatesTotal.WithLabelValues(status).Inc()
}
