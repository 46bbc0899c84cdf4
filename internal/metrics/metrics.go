// Package metrics exposes Prometheus instrumentation for polling, the
// upstream client and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/playerwatch/internal/model"
)

// Recorder is the instrumentation surface used across the application
type Recorder interface {
	ObserveUpstreamRequest(op string, status int, duration time.Duration)
	ObserveCycle(log *model.PollingCycleLog)
	IncCycleFailures()
	IncCyclesSkipped()
	IncRequestsTotal(route string, status int)
	ObserveRequestDuration(route string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	// IncCacheRejects counts responses too large to cache
	IncCacheRejects()
	// Handler serves the exposition format; nil when metrics are disabled
	Handler() http.Handler
}

// Prometheus records metrics into its own registry
type Prometheus struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cyclesTotal      prometheus.Counter
	cycleFailures    prometheus.Counter
	cyclesSkipped    prometheus.Counter
	cycleDuration    prometheus.Histogram
	playersPolled    *prometheus.CounterVec
	trackedPlayers   prometheus.Gauge
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheRejects     prometheus.Counter
}

var _ Recorder = (*Prometheus)(nil)

// New creates a Prometheus recorder backed by a fresh registry
func New() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Prometheus{
		registry: reg,

		upstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "playerwatch_upstream_requests_total",
			Help: "Total number of upstream API requests",
		}, []string{"op", "status"}),

		upstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "playerwatch_upstream_request_duration_seconds",
			Help:    "Upstream API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		cyclesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "playerwatch_cycles_total",
			Help: "Total number of completed polling cycles",
		}),

		cycleFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "playerwatch_cycle_failures_total",
			Help: "Total number of polling cycles that aborted",
		}),

		cyclesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "playerwatch_cycles_skipped_total",
			Help: "Scheduled polling cycles skipped because one was already running",
		}),

		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "playerwatch_cycle_duration_seconds",
			Help:    "Polling cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		playersPolled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "playerwatch_players_polled_total",
			Help: "Players processed by polling cycles, by result",
		}, []string{"result"}),

		trackedPlayers: f.NewGauge(prometheus.GaugeOpts{
			Name: "playerwatch_tracked_players",
			Help: "Active players seen by the most recent polling cycle",
		}),

		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "playerwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "playerwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "playerwatch_cache_hits_total",
			Help: "Total number of response cache hits",
		}),

		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "playerwatch_cache_misses_total",
			Help: "Total number of response cache misses",
		}),

		cacheRejects: f.NewCounter(prometheus.CounterOpts{
			Name: "playerwatch_cache_rejects_total",
			Help: "Total number of responses too large for the response cache",
		}),
	}
}

func (m *Prometheus) ObserveUpstreamRequest(op string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(op, label).Inc()
	m.upstreamDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Prometheus) ObserveCycle(log *model.PollingCycleLog) {
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(float64(log.DurationMs) / 1000)
	m.playersPolled.WithLabelValues("success").Add(float64(log.SuccessCount))
	m.playersPolled.WithLabelValues("error").Add(float64(log.ErrorCount))
	m.trackedPlayers.Set(float64(log.PlayersCount))
}

func (m *Prometheus) IncCycleFailures() {
	m.cycleFailures.Inc()
}

func (m *Prometheus) IncCyclesSkipped() {
	m.cyclesSkipped.Inc()
}

func (m *Prometheus) IncRequestsTotal(route string, status int) {
	m.requestsTotal.WithLabelValues(route, httpStatusBucket(status)).Inc()
}

func (m *Prometheus) ObserveRequestDuration(route string, duration time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Prometheus) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *Prometheus) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *Prometheus) IncCacheRejects() {
	m.cacheRejects.Inc()
}

func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (used by tests)
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type noopRecorder struct{}

// Noop returns a Recorder that discards everything
func Noop() Recorder {
	return noopRecorder{}
}

func (noopRecorder) ObserveUpstreamRequest(string, int, time.Duration) {}
func (noopRecorder) ObserveCycle(*model.PollingCycleLog)               {}
func (noopRecorder) IncCycleFailures()                                 {}
func (noopRecorder) IncCyclesSkipped()                                 {}
func (noopRecorder) IncRequestsTotal(string, int)                      {}
func (noopRecorder) ObserveRequestDuration(string, time.Duration)      {}
func (noopRecorder) IncCacheHits()                                     {}
func (noopRecorder) IncCacheMisses()                                   {}
func (noopRecorder) IncCacheRejects()                                  {}
func (noopRecorder) Handler() http.Handler                             { return nil }
