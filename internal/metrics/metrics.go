package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts video requests accepted by the orchestrator.
	JobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explainer_jobs_submitted_total",
			Help: "Total number of video explanation requests started",
		},
	)

	// JobsFinished counts jobs by terminal state.
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explainer_jobs_finished_total",
			Help: "Total number of video jobs that reached a terminal state",
		},
		[]string{"state"},
	)

	// Errors counts classified failures by phase and kind.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explainer_errors_total",
			Help: "Total number of classified failures",
		},
		[]string{"phase", "kind"},
	)

	// Retries counts granted retries by phase.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explainer_retries_total",
			Help: "Total number of retries granted",
		},
		[]string{"phase"},
	)

	// PollErrors counts failed status polls.
	PollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explainer_poll_errors_total",
			Help: "Total number of failed status polls",
		},
	)

	// DownloadedBytes counts artifact bytes written to disk.
	DownloadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explainer_downloaded_bytes_total",
			Help: "Total number of video bytes downloaded",
		},
	)

	// ActiveJobs tracks jobs currently held in the registry.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "explainer_active_jobs",
			Help: "Number of video jobs in progress",
		},
	)

	// JobDuration tracks wall time from request to terminal state.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explainer_job_duration_seconds",
			Help:    "Video job duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"state"},
	)

	// HTTPRequests counts API requests by route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explainer_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks API request latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explainer_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
