package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the conversion pipeline.
type Metrics struct {
	config MetricsConfig

	// Conversion metrics
	conversions        *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	conversionHops     *prometheus.HistogramVec

	// Hop metrics
	hopsExecuted *prometheus.CounterVec
	hopDuration  *prometheus.HistogramVec

	// Resolver metrics
	pathResolutions *prometheus.CounterVec
	pathCacheHits   *prometheus.CounterVec

	// Graph metrics
	graphRebuilds prometheus.Counter
	graphNodes    prometheus.Gauge
	graphEdges    prometheus.Gauge

	// Compiler metrics
	compilations *prometheus.CounterVec

	// Device and job metrics
	jobsSubmitted *prometheus.CounterVec
	jobsActive    prometheus.Gauge

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Conversion metrics
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of transpile calls",
			},
			[]string{"source", "target", "status"},
		),
		conversionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Duration of transpile calls in seconds",
				Buckets:   buckets,
			},
			[]string{"source", "target"},
		),
		conversionHops: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_path_hops",
				Help:      "Number of hops in executed conversion paths",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8},
			},
			[]string{"source", "target"},
		),

		// Hop metrics
		hopsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hops_executed_total",
				Help:      "Total number of converter invocations",
			},
			[]string{"source", "target", "status"},
		),
		hopDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "hop_duration_seconds",
				Help:      "Duration of converter invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"source", "target"},
		),

		// Resolver metrics
		pathResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "path_resolutions_total",
				Help:      "Total number of conversion path queries",
			},
			[]string{"status"},
		),
		pathCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "path_cache_lookups_total",
				Help:      "Total number of path cache lookups",
			},
			[]string{"result"},
		),

		// Graph metrics
		graphRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_rebuilds_total",
				Help:      "Total number of conversion graph rebuilds",
			},
		),
		graphNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of program types in the current conversion graph",
			},
		),
		graphEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_edges",
				Help:      "Number of converters in the current conversion graph",
			},
		),

		// Compiler metrics
		compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compilations_total",
				Help:      "Total number of gate-set rebases by outcome",
			},
			[]string{"target", "status"},
		),

		// Device and job metrics
		jobsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_submitted_total",
				Help:      "Total number of jobs submitted to devices",
			},
			[]string{"device", "status"},
		),
		jobsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Current number of jobs not in a terminal state",
			},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.conversions,
		m.conversionDuration,
		m.conversionHops,
		m.hopsExecuted,
		m.hopDuration,
		m.pathResolutions,
		m.pathCacheHits,
		m.graphRebuilds,
		m.graphNodes,
		m.graphEdges,
		m.compilations,
		m.jobsSubmitted,
		m.jobsActive,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Conversion Metrics

// RecordConversion records a completed transpile call.
func (m *Metrics) RecordConversion(source, target, status string, hops int, duration time.Duration) {
	if m == nil || m.conversions == nil {
		return
	}
	m.conversions.WithLabelValues(source, target, status).Inc()
	m.conversionDuration.WithLabelValues(source, target).Observe(duration.Seconds())
	if status == "success" {
		m.conversionHops.WithLabelValues(source, target).Observe(float64(hops))
	}
}

// RecordHop records one converter invocation.
func (m *Metrics) RecordHop(source, target, status string, duration time.Duration) {
	if m == nil || m.hopsExecuted == nil {
		return
	}
	m.hopsExecuted.WithLabelValues(source, target, status).Inc()
	m.hopDuration.WithLabelValues(source, target).Observe(duration.Seconds())
}

// Resolver Metrics

// RecordPathResolution records a path query outcome (found, not_found).
func (m *Metrics) RecordPathResolution(status string) {
	if m == nil || m.pathResolutions == nil {
		return
	}
	m.pathResolutions.WithLabelValues(status).Inc()
}

// RecordPathCacheLookup records a path cache hit or miss.
func (m *Metrics) RecordPathCacheLookup(hit bool) {
	if m == nil || m.pathCacheHits == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.pathCacheHits.WithLabelValues(result).Inc()
}

// Graph Metrics

// RecordGraphRebuild records a graph rebuild and its resulting size.
func (m *Metrics) RecordGraphRebuild(nodes, edges int) {
	if m == nil || m.graphRebuilds == nil {
		return
	}
	m.graphRebuilds.Inc()
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
}

// Compiler Metrics

// RecordCompilation records a rebase outcome for a target.
func (m *Metrics) RecordCompilation(target, status string) {
	if m == nil || m.compilations == nil {
		return
	}
	m.compilations.WithLabelValues(target, status).Inc()
}

// Job Metrics

// RecordJobSubmitted records a job submission and increments active jobs
// when it was accepted.
func (m *Metrics) RecordJobSubmitted(device, status string) {
	if m == nil || m.jobsSubmitted == nil {
		return
	}
	m.jobsSubmitted.WithLabelValues(device, status).Inc()
	if status == "success" {
		m.jobsActive.Inc()
	}
}

// RecordJobFinished decrements the active job gauge.
func (m *Metrics) RecordJobFinished() {
	if m == nil || m.jobsActive == nil {
		return
	}
	m.jobsActive.Dec()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// NewMetricsServer returns an HTTP server exposing the metrics endpoint.
func (m *Metrics) NewMetricsServer() *http.Server {
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	return &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
