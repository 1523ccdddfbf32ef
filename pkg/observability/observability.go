package observability

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resume_jobs_submitted_total",
		Help: "The total number of submitted customization jobs",
	}, []string{"output_format"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resume_jobs_processed_total",
		Help: "The total number of processed jobs",
	}, []string{"outcome"}) // outcome: completed, failed, retried, requeued

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resume_job_duration_seconds",
		Help:    "End-to-end duration of job processing.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resume_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"stage"})

	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resume_ai_requests_total",
		Help: "Chat completion attempts by service and outcome.",
	}, []string{"service", "outcome"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "resume_circuit_breaker_state",
		Help: "Circuit breaker state per service (0 closed, 1 half-open, 2 open).",
	}, []string{"service"})
)

// NewLogger creates a new structured logger.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// StartMetricsServer runs an HTTP server to expose Prometheus metrics.
func StartMetricsServer(addr string) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, nil); err != nil {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}
