package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// Baidu adapter and the place harvester.
type Metrics struct {
	// Baidu API metrics.
	Requests    *prometheus.CounterVec   // labels: method={geocode,reverse,search}, outcome={success,empty,error}
	APIDuration *prometheus.HistogramVec // labels: method={geocode,reverse,search}
	PageRetries prometheus.Counter
	Cache       *prometheus.CounterVec // labels: method={geocode,reverse}, result={hit,miss}

	// Harvester metrics.
	PlacesPublished prometheus.Counter
	PublishErrors   prometheus.Counter
	HarvestDuration prometheus.Histogram
	HarvestRunning  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baidu",
			Name:      "requests_total",
			Help:      "Baidu API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "baidu",
			Name:      "api_duration_seconds",
			Help:      "Baidu API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		PageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "baidu",
			Name:      "page_retries_total",
			Help:      "Place search page fetches retried after a timeout.",
		}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baidu",
			Name:      "cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		PlacesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harvest",
			Name:      "places_published_total",
			Help:      "Total places written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harvest",
			Name:      "publish_errors_total",
			Help:      "Total failed batch writes to the sink topic.",
		}),
		HarvestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harvest",
			Name:      "run_duration_seconds",
			Help:      "Duration of one full harvest over all queries.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		HarvestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "harvest",
			Name:      "running",
			Help:      "1 while a harvest is in progress, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.Requests,
		m.APIDuration,
		m.PageRetries,
		m.Cache,
		m.PlacesPublished,
		m.PublishErrors,
		m.HarvestDuration,
		m.HarvestRunning,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

// NewUnregisteredMetrics creates Metrics that no registry exports, for
// one-shot tools that never serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return &Metrics{
		Requests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "baidu", Name: "requests_total"}, []string{"method", "outcome"}),
		APIDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "baidu", Name: "api_duration_seconds"}, []string{"method"}),
		PageRetries:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "baidu", Name: "page_retries_total"}),
		Cache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "baidu", Name: "cache_total"}, []string{"method", "result"}),
		PlacesPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "harvest", Name: "places_published_total"}),
		PublishErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "harvest", Name: "publish_errors_total"}),
		HarvestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "harvest", Name: "run_duration_seconds"}),
		HarvestRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "harvest", Name: "running"}),
	}
}
