// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_scores_computed_total",
			Help: "Match scores computed and persisted",
		},
		[]string{"entity_type", "outcome"},
	)

	ScoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "match_score_duration_seconds",
			Help: "Duration of a single score-and-persist pass",
		},
		[]string{"entity_type"},
	)

	EngagementDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_degraded_total",
			Help: "Engagement scores that fell back to neutral after a read failure",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"},
	)

	InteractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_total",
			Help: "Interaction ledger mutations",
		},
		[]string{"entity_type", "type", "action"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Jobs currently being processed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
