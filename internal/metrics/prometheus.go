// Package metrics exposes Prometheus instrumentation for ingest runs,
// scoreboard computation and reveal steps.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	ingestLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_lines_total",
			Help: "Total feed lines processed, by outcome",
		},
		[]string{"outcome"}, // applied, warned, error
	)

	ingestRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of a full ingest run, by terminal outcome",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"}, // finished, failed
	)

	scoreboardComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoreboard_compute_duration_seconds",
			Help:    "Duration of one scoreboard computation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	revealStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reveal_steps_total",
			Help: "Total reveal state machine steps, by resulting phase",
		},
		[]string{"phase"},
	)

	revealActiveMachines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reveal_active_machines",
			Help: "Number of reveal machines currently held in memory",
		},
	)

	revealConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reveal_sse_connections",
			Help: "Number of active real-time connections (SSE) watching a run",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		ingestLinesTotal,
		ingestRunDuration,
		scoreboardComputeDuration,
		revealStepsTotal,
		revealActiveMachines,
		revealConnections,
	)
}

// MetricsHandler returns the Prometheus scrape endpoint handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware records per-request latency and status on the control
// server's router.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapper.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// IngestMetrics records per-line and per-run ingest counters.
type IngestMetrics struct{}

func NewIngestMetrics() *IngestMetrics { return &IngestMetrics{} }

func (IngestMetrics) LineApplied() { ingestLinesTotal.WithLabelValues("applied").Inc() }
func (IngestMetrics) LineWarned()  { ingestLinesTotal.WithLabelValues("warned").Inc() }
func (IngestMetrics) LineErrored() { ingestLinesTotal.WithLabelValues("error").Inc() }

func (IngestMetrics) ObserveRun(outcome string, d time.Duration) {
	ingestRunDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ScoreboardMetrics records scoreboard compute timing.
type ScoreboardMetrics struct{}

func NewScoreboardMetrics() *ScoreboardMetrics { return &ScoreboardMetrics{} }

func (ScoreboardMetrics) ObserveCompute(d time.Duration) {
	scoreboardComputeDuration.Observe(d.Seconds())
}

// RevealMetrics records reveal state machine activity.
type RevealMetrics struct{}

func NewRevealMetrics() *RevealMetrics { return &RevealMetrics{} }

func (RevealMetrics) StepTo(phase string)   { revealStepsTotal.WithLabelValues(phase).Inc() }
func (RevealMetrics) MachineStarted()       { revealActiveMachines.Inc() }
func (RevealMetrics) MachineDiscarded()     { revealActiveMachines.Dec() }
func (RevealMetrics) SetConnections(n int)  { revealConnections.Set(float64(n)) }
