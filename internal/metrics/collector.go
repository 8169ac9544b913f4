// Package metrics exposes Prometheus instrumentation for runs, sweeps and the
// HTTP API.
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

const Namespace = "memseries"

// Collector owns a private registry so several collectors (tests, embedded
// servers) never collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	seriesRuns     *prometheus.CounterVec
	seriesSteps    *prometheus.CounterVec
	seriesDuration *prometheus.HistogramVec

	sweepPoints   *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	sweepsActive  prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

func NewCollector(logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.seriesRuns = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "series_runs_total",
			Help:      "Recurrence runs by variant and outcome",
		},
		[]string{"variant", "status"},
	)
	c.seriesSteps = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "series_terms_total",
			Help:      "Terms generated by the recurrence engine",
		},
		[]string{"variant"},
	)
	c.seriesDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "series_run_duration_seconds",
			Help:      "Wall time of a single run",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
		[]string{"variant"},
	)

	c.sweepPoints = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sweep_points_total",
			Help:      "Sweep grid points evaluated",
		},
		[]string{"kind", "status"},
	)
	c.sweepDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a whole sweep",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"kind", "status"},
	)
	c.sweepsActive = f.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "sweeps_active",
		Help:      "Sweeps currently running",
	})

	c.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordSeriesRun counts one engine run of n terms.
func (c *Collector) RecordSeriesRun(variant string, n int, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.seriesRuns.WithLabelValues(variant, status).Inc()
	if err == nil {
		c.seriesSteps.WithLabelValues(variant).Add(float64(n))
	}
	c.seriesDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

func (c *Collector) RecordSweepPoint(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.sweepPoints.WithLabelValues(kind, status).Inc()
}

// SweepStarted bumps the active gauge and returns the matching finish hook.
func (c *Collector) SweepStarted(kind string) func(status string) {
	start := time.Now()
	c.sweepsActive.Inc()
	return func(status string) {
		c.sweepsActive.Dec()
		c.sweepDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
		c.logger.Debug("sweep finished",
			zap.String("kind", kind),
			zap.String("status", status),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
